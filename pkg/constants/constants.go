package constants

// IDField is the field the store manages as the document identifier.
const IDField = "_id"

const (
	MongoDBScheme    = "mongodb"
	MongoDBSRVScheme = "mongodb+srv"
	MemoryScheme     = "memory"

	DefaultHost = "localhost"
	DefaultPort = 27017
)

// MaxEmbedDepth bounds how deep embedded documents are followed.
// Resource graphs deeper than this are treated as cyclic.
const MaxEmbedDepth = 64
