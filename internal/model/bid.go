package model

// Lot is a work package of a construction bid document.
type Lot struct {
	Numero string `json:"numero" yaml:"numero"`
	Name   string `json:"name" yaml:"name"`
}

// LotStrategy names the lot identification strategy that produced a lot.
type LotStrategy string

const (
	LotStrategyFilename LotStrategy = "filename"
	LotStrategyService  LotStrategy = "service"
	LotStrategyContent  LotStrategy = "content"
	LotStrategyNone     LotStrategy = "none"
)

// ElementType tags how an element is priced.
type ElementType string

const (
	ElementStandard ElementType = "standard"
	ElementForfait  ElementType = "forfait"
	ElementVariable ElementType = "variable"
)

// Section is a numbered or titled chapter of a lot.
type Section struct {
	Numero    string    `json:"numero"`
	Title     string    `json:"title"`
	Level     int       `json:"level"`
	Parent    string    `json:"parent,omitempty"`
	Row       int       `json:"row"`
	Pattern   string    `json:"pattern"`
	Synthetic bool      `json:"synthetic,omitempty"`
	Elements  []Element `json:"elements"`
}

// Element is a single priced line item.
type Element struct {
	Designation string      `json:"designation"`
	Article     string      `json:"article,omitempty"`
	Unit        string      `json:"unit"`
	Quantity    float64     `json:"quantity"`
	UnitPrice   float64     `json:"unit_price"`
	TotalPrice  float64     `json:"total_price"`
	Reconciled  bool        `json:"reconciled"`
	Type        ElementType `json:"type"`
	Multiline   bool        `json:"multiline,omitempty"`
	Row         int         `json:"row"`
}

// WarningKind classifies a recoverable condition reported during extraction.
type WarningKind string

const (
	WarnNumberUnparsed         WarningKind = "number_unparsed"
	WarnNumeroTruncated        WarningKind = "numero_truncated"
	WarnSyntheticSection       WarningKind = "synthetic_section"
	WarnReconciledInconsistent WarningKind = "reconciled_inconsistent"
	WarnNegativeValue          WarningKind = "negative_value"
	WarnRowIgnored             WarningKind = "row_ignored"
	WarnLotNotFound            WarningKind = "lot_not_found"
	WarnLowMappingConfidence   WarningKind = "low_mapping_confidence"
	WarnAmbiguousMagnitude     WarningKind = "ambiguous_magnitude"
	WarnHeaderNotFound         WarningKind = "header_not_found"
	WarnSheetLowConfidence     WarningKind = "sheet_low_confidence"
	WarnAIFallback             WarningKind = "ai_fallback"
	WarnMappingRejected        WarningKind = "mapping_rejected"
	WarnPricedSection          WarningKind = "priced_section"
)

// Warning is a row-level (or document-level when Row is -1) diagnostic.
type Warning struct {
	Row     int         `json:"row"`
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
	Raw     []string    `json:"raw,omitempty"`
}
