package session

// DocumentType names a kind of persisted entity.
type DocumentType string

const (
	TypeSession  DocumentType = "session"
	TypeFix      DocumentType = "fix"
	TypeAnalysis DocumentType = "analysis"
	TypePlugin   DocumentType = "plugin"
)

// DocumentTypes lists every document type the state store manages.
var DocumentTypes = []DocumentType{TypeSession, TypeFix, TypeAnalysis, TypePlugin}
