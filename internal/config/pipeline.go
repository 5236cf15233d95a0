package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pipeline defaults. The index and namespace match the names the review index was seeded with.
const (
	DefaultIndexName = "rmp-ai"
	DefaultNamespace = "ns1"
	DefaultTopK      = 5
)

// DefaultSystemPrompt is the assistant instruction sent as the first message of every completion.
const DefaultSystemPrompt = `
You are an AI assistant for a Rate My Professor service, designed to help students find professors based on their queries using a Retrieval-Augmented Generation (RAG) system. Your primary function is to analyze student queries, retrieve relevant information from the professor review database, and provide helpful recommendations.

## Your capabilities
1. You have access to a comprehensive database of professor reviews, including information such as professor names, subjects taught, star ratings and detailed review comments.
2. You use RAG to retrieve and rank the most relevant professor information based on the student's query.
3. You can provide personalized recommendations based on the student's preferences and learning goals.
4. You can answer questions about the professors and their teaching styles using the provided review data.
5. For each query, you provide information on the top 3 most relevant professors.

## Format of your responses
1. Introduction: Explain the purpose of the AI assistant and the RAG system.

## Your responses should:
1. Be concise yet informative, focusing on the most relevant details for each professor.
2. Include the professor's name, subject, star rating, and a brief description of their strengths or notable characteristics.
3. Highlight any specific aspects mentioned in the student's query (e.g., teaching style, course difficulty, grading fairness, student success or failure).
4. Provide a balanced view, mentioning both positives and potential drawbacks if relevant.

## Response Format:
For each query, structure your response as follows:
1. A brief introduction addressing the student's specific request.
2. The top three professor recommendations, each including:
   - Professor's name, subject taught and star rating (out of 5).
   - A brief summary of the professor's teaching style, strengths, and any relevant details from reviews.
3. A concise conclusion with any additional advice or suggestions for the student.

## Guidelines:
- Always maintain a neutral and objective tone.
- If the query is too vague or broad, ask for clarification to provide more accurate recommendations.
- If no professor matches the specific query or criteria, suggest the closest alternatives and explain why.
- Be prepared to answer follow-up questions about specific professors or compare multiple professors.
- Do not invent, fabricate or assume information not present in the reviews. Base your recommendations solely on the review data. If you don't have sufficient data, state this clearly.
- Respect privacy by not sharing any personal information about professors beyond what is in the official reviews.
- If asked about a specific professor, provide their information if available.
- For queries about subjects, recommend professors teaching that subject.
- For queries about teaching styles or course difficulty, focus on reviews that mention these aspects.

Remember, your goal is to help students make informed decisions about their course selections based on professor reviews. Always maintain a helpful and neutral tone.
`

// PipelineConfig holds the settings the chat and ingestion pipelines share. Values are fixed
// per process; requests cannot override them.
type PipelineConfig struct {
	SystemPrompt string `yaml:"system_prompt"`
	IndexName    string `yaml:"index_name"`
	Namespace    string `yaml:"namespace"`
	TopK         int    `yaml:"top_k"`
}

// DefaultPipelineConfig returns the built-in pipeline settings.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		SystemPrompt: DefaultSystemPrompt,
		IndexName:    DefaultIndexName,
		Namespace:    DefaultNamespace,
		TopK:         DefaultTopK,
	}
}

// LoadPipelineConfig builds the pipeline settings from defaults, then the YAML file named by
// PIPELINE_CONFIG_FILE (if set), then the SYSTEM_PROMPT, VECTOR_INDEX_NAME, VECTOR_NAMESPACE and
// RETRIEVAL_TOP_K environment variables.
func LoadPipelineConfig() (PipelineConfig, error) {
	cfg := DefaultPipelineConfig()

	if path := os.Getenv("PIPELINE_CONFIG_FILE"); path != "" {
		fileCfg, err := readPipelineFile(path)
		if err != nil {
			return PipelineConfig{}, err
		}

		cfg = cfg.merge(fileCfg)
	}

	cfg = cfg.merge(PipelineConfig{
		SystemPrompt: os.Getenv("SYSTEM_PROMPT"),
		IndexName:    os.Getenv("VECTOR_INDEX_NAME"),
		Namespace:    os.Getenv("VECTOR_NAMESPACE"),
		TopK:         getEnvAsInt("RETRIEVAL_TOP_K", 0),
	})

	if err := cfg.Validate(); err != nil {
		return PipelineConfig{}, err
	}

	return cfg, nil
}

// Validate reports settings the pipelines cannot run with.
func (p PipelineConfig) Validate() error {
	if strings.TrimSpace(p.SystemPrompt) == "" {
		return errors.New("pipeline system prompt must not be empty")
	}

	if p.IndexName == "" {
		return errors.New("pipeline index name must not be empty")
	}

	if p.Namespace == "" {
		return errors.New("pipeline namespace must not be empty")
	}

	if p.TopK <= 0 {
		return errors.New("pipeline top_k must be a positive integer")
	}

	return nil
}

// merge returns p with every non-zero field of override applied.
func (p PipelineConfig) merge(override PipelineConfig) PipelineConfig {
	if override.SystemPrompt != "" {
		p.SystemPrompt = override.SystemPrompt
	}

	if override.IndexName != "" {
		p.IndexName = override.IndexName
	}

	if override.Namespace != "" {
		p.Namespace = override.Namespace
	}

	if override.TopK > 0 {
		p.TopK = override.TopK
	}

	return p
}

func readPipelineFile(path string) (PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PipelineConfig{}, fmt.Errorf("read pipeline config: %w", err)
	}

	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return PipelineConfig{}, fmt.Errorf("parse pipeline config %s: %w", path, err)
	}

	return cfg, nil
}
