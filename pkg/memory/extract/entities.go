package extract

import (
	"regexp"
	"strings"

	"github.com/mnemo-ai/mnemo/pkg/memory/model"
)

// knownTechnologies maps lowercase names to their canonical spelling. The
// list is small on purpose; it covers the tools that show up in day-to-day
// assistant conversations.
var knownTechnologies = map[string]string{
	"postgresql": "PostgreSQL",
	"postgres":   "PostgreSQL",
	"sqlite":     "SQLite",
	"mysql":      "MySQL",
	"mongodb":    "MongoDB",
	"redis":      "Redis",
	"neo4j":      "Neo4j",
	"docker":     "Docker",
	"kubernetes": "Kubernetes",
	"terraform":  "Terraform",
	"python":     "Python",
	"golang":     "Go",
	"rust":       "Rust",
	"typescript": "TypeScript",
	"javascript": "JavaScript",
	"react":      "React",
	"linux":      "Linux",
	"nginx":      "nginx",
	"kafka":      "Kafka",
	"grpc":       "gRPC",
	"graphql":    "GraphQL",
	"git":        "Git",
	"ollama":     "Ollama",
	"openai":     "OpenAI",
}

var (
	classNameRe  = regexp.MustCompile(`\b(?:[A-Z][a-z0-9]+){2,}\b`)
	fileNameRe   = regexp.MustCompile(`\b[\w./-]+\.(?:go|py|js|ts|tsx|jsx|rs|java|rb|c|h|cpp|sql|sh|ya?ml|json|toml|md|txt|cfg|ini|env|proto)\b`)
	configVarRe  = regexp.MustCompile(`\b[A-Z][A-Z0-9]*(?:_[A-Z0-9]+)+\b`)
	wordSplitRe  = regexp.MustCompile(`[^\w./-]+`)
	minCamelSize = 4
)

// Entities returns up to cap entities found in the content, deduplicated by
// name. Detector order decides which entries survive the cap: known
// technologies, class-like identifiers, file names, then config variables.
func Entities(content string, cap int) []model.Entity {
	if cap <= 0 || content == "" {
		return nil
	}
	var out []model.Entity
	seen := make(map[string]struct{})
	add := func(name, typ string) bool {
		if name == "" {
			return len(out) < cap
		}
		if _, dup := seen[name]; dup {
			return len(out) < cap
		}
		seen[name] = struct{}{}
		out = append(out, model.Entity{Name: name, Type: typ})
		return len(out) < cap
	}

	for _, word := range wordSplitRe.Split(content, -1) {
		if canonical, ok := knownTechnologies[strings.ToLower(word)]; ok {
			if !add(canonical, model.EntityTechnology) {
				return out
			}
		}
	}
	for _, token := range classNameRe.FindAllString(content, -1) {
		if len(token) < minCamelSize {
			continue
		}
		if _, tech := seen[token]; tech {
			continue
		}
		if !add(token, model.EntityClass) {
			return out
		}
	}
	for _, token := range fileNameRe.FindAllString(content, -1) {
		if !add(token, model.EntityFile) {
			return out
		}
	}
	for _, token := range configVarRe.FindAllString(content, -1) {
		if len(token) < minCamelSize {
			continue
		}
		if !add(token, model.EntityConfig) {
			return out
		}
	}
	return out
}

// EntityNames extracts just the names, preserving detection order.
func EntityNames(content string, cap int) []string {
	entities := Entities(content, cap)
	if len(entities) == 0 {
		return nil
	}
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.Name
	}
	return names
}
