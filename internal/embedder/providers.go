package embedder

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "feature-hash-384"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Endpoints
	JinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	OpenAIEndpoint = "https://api.openai.com/v1/embeddings"

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// Environment variables read by the factory
const (
	EnvProvider     = "CODESCOPE_EMBEDDING_PROVIDER"
	EnvModel        = "CODESCOPE_EMBEDDING_MODEL"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// remoteSpec describes one hosted embeddings API
type remoteSpec struct {
	name         string
	endpoint     string
	defaultModel string
	dimension    int
	envKey       string
}

var (
	jinaSpec = remoteSpec{
		name:         ProviderJina,
		endpoint:     JinaEndpoint,
		defaultModel: DefaultJinaModel,
		dimension:    JinaDimension,
		envKey:       EnvJinaAPIKey,
	}
	openAISpec = remoteSpec{
		name:         ProviderOpenAI,
		endpoint:     OpenAIEndpoint,
		defaultModel: DefaultOpenAIModel,
		dimension:    OpenAIDimension,
		envKey:       EnvOpenAIAPIKey,
	}
)
