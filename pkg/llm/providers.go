package llm

import "os"

// Default models per provider. Overridable via the matching *_MODEL
// environment variable.
const (
	defaultAnthropicModel  = "claude-sonnet-4-5"
	defaultOpenAIModel     = "gpt-4o"
	defaultDeepSeekModel   = "deepseek-chat"
	defaultGroqModel       = "llama-3.3-70b-versatile"
	defaultOpenRouterModel = "anthropic/claude-sonnet-4.5"
	defaultSambaNovaModel  = "Meta-Llama-3.3-70B-Instruct"
	defaultPerplexityModel = "sonar"
)

// Chat-completions base URLs for the OpenAI-compatible providers.
const (
	deepSeekBaseURL   = "https://api.deepseek.com"
	groqBaseURL       = "https://api.groq.com/openai/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	sambaNovaBaseURL  = "https://api.sambanova.ai/v1"
	perplexityBaseURL = "https://api.perplexity.ai"
)

func envModel(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// FromEnv builds every provider whose API key is present in the
// environment, in default priority order. Unconfigured providers are
// still returned (the composite skips them) so the chain shape is
// stable across environments.
func FromEnv() []LLM {
	return []LLM{
		NewAnthropic(os.Getenv("ANTHROPIC_API_KEY"),
			envModel("ANTHROPIC_MODEL", defaultAnthropicModel), 200_000),
		NewOpenAICompatible("openai", os.Getenv("OPENAI_API_KEY"), "",
			envModel("OPENAI_MODEL", defaultOpenAIModel), 128_000),
		NewOpenAICompatible("deepseek", os.Getenv("DEEPSEEK_API_KEY"), deepSeekBaseURL,
			envModel("DEEPSEEK_MODEL", defaultDeepSeekModel), 64_000),
		NewOpenAICompatible("groq", os.Getenv("GROQ_API_KEY"), groqBaseURL,
			envModel("GROQ_MODEL", defaultGroqModel), 128_000),
		NewOpenAICompatible("openrouter", os.Getenv("OPENROUTER_API_KEY"), openRouterBaseURL,
			envModel("OPENROUTER_MODEL", defaultOpenRouterModel), 200_000),
		NewOpenAICompatible("sambanova", os.Getenv("SAMBANOVA_API_KEY"), sambaNovaBaseURL,
			envModel("SAMBANOVA_MODEL", defaultSambaNovaModel), 64_000),
		NewOpenAICompatible("perplexity", os.Getenv("PERPLEXITY_KEY"), perplexityBaseURL,
			envModel("PERPLEXITY_MODEL", defaultPerplexityModel), 127_000),
	}
}
