package domain

// Wiki page naming conventions for Blue Railroad content.
const (
	TokenPagePrefix      = "Blue Railroad Token "
	SubmissionPagePrefix = "Blue Railroad Submission/"

	TokenTemplate       = "Blue Railroad Token"
	SubmissionTemplate  = "Blue Railroad Submission"
	ParticipantTemplate = "Blue Railroad Participant"
)

// Submission status values as stored in the status field.
const (
	StatusPending = "Pending"
	StatusMinted  = "Minted"
)

// SourceVersion distinguishes the two token contract generations.
type SourceVersion string

const (
	// SourceLegacy tokens carry a mint date and an ipfs:// URI.
	SourceLegacy SourceVersion = "v1"
	// SourceCurrent tokens carry a block height and a raw video hash.
	SourceCurrent SourceVersion = "v2"
)
