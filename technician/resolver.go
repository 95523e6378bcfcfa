// Package technician maps the many spellings found in timesheets and the
// client registry onto the firm's closed set of technician identities.
package technician

import (
	"strings"

	"timeledger/namenorm"
)

// Unassigned labels minutes that cannot be attributed to a technician.
const Unassigned = "Unassigned"

// Kind classifies a raw technician spelling.
type Kind int

const (
	// Unknown spellings are reported, never merged into the ledger.
	Unknown Kind = iota
	// Known spellings are aliases of a canonical identity.
	Known
	// Inferred marks the special identity whose hours were historically
	// logged on behalf of whichever technician manages the client; the
	// real attribution comes from the registry, not the spreadsheet.
	Inferred
)

// Classification is the outcome of resolving one raw spelling.
type Classification struct {
	Kind      Kind
	Canonical string
}

// Resolver holds the alias table. It is built once at startup and is
// immutable afterwards.
type Resolver struct {
	aliases  map[string]string
	inferred map[string]struct{}
}

// NewResolver builds the alias table from every canonical identity and its
// historically observed variant spellings.
func NewResolver() *Resolver {
	r := &Resolver{
		aliases:  make(map[string]string),
		inferred: make(map[string]struct{}),
	}

	r.register("Pedro Almeida",
		"Pedro Miguel Santos Almeida",
	)
	r.register("Ana Rodrigues",
		"Ana Catarina Lopes Rodrigues",
		"Ana Catarina Lopes Rodriges",
	)
	r.register("Daniela Ferreira",
		"Marta Daniela Cruz Ferreira",
		"Daniela Cruz Ferreira",
	)
	r.register("Celine Santos",
		"Celine",
		"Celine Rodrigues dos Santos",
	)
	r.register("M Albertina Alves",
		"Maria Albertina Pereira Alves",
	)
	r.register("Luzia Moreira",
		"Luzia Maria Gonçalves Moreira",
		"Luzia Maria Goncalves Moreira",
	)
	r.register("João Pedro Alves",
		"João Pedro Gonçalves Alves",
		"Joao Pedro Goncalves Alves",
		"Joao Pedro Alves",
	)

	// Timesheets mis-attributed this identity's hours for years; its rows
	// must be re-attributed from the client's recorded technician.
	r.registerInferred(
		"Artur Mendes",
		"Artur Palhares Mendes",
		"Artur P Mendes",
	)

	return r
}

func (r *Resolver) register(canonical string, variants ...string) {
	for _, name := range append([]string{canonical}, variants...) {
		if key := namenorm.Person(name); key != "" {
			r.aliases[key] = canonical
		}
	}
}

func (r *Resolver) registerInferred(variants ...string) {
	for _, name := range variants {
		if key := namenorm.Person(name); key != "" {
			r.inferred[key] = struct{}{}
		}
	}
}

// Resolve classifies a raw spelling from a spreadsheet or the registry.
func (r *Resolver) Resolve(raw string) Classification {
	key := namenorm.Person(raw)
	if key == "" {
		return Classification{Kind: Unknown}
	}
	if _, ok := r.inferred[key]; ok {
		return Classification{Kind: Inferred}
	}
	if canonical, ok := r.aliases[key]; ok {
		return Classification{Kind: Known, Canonical: canonical}
	}
	return Classification{Kind: Unknown}
}

// Canonicalize converts any persisted technician key to its canonical form.
// Known aliases collapse into the canonical identity, the inferred identity
// collapses into Unassigned (its literal attribution is meaningless), and
// anything else keeps its trimmed spelling. Used when migrating historical
// per-technician breakdowns.
func (r *Resolver) Canonicalize(raw string) string {
	cls := r.Resolve(raw)
	switch cls.Kind {
	case Known:
		return cls.Canonical
	case Inferred:
		return Unassigned
	}
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		return trimmed
	}
	return Unassigned
}
