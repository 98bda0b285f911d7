// Package extract derives topics and entities from memory content with
// deterministic keyword and pattern rules. No model call is involved, so
// extraction is cheap enough to run inline on every write.
package extract

import (
	"regexp"
	"sort"
	"strings"
)

// topicRule binds a canonical topic to the trigger keywords that imply it.
// Triggers cover English and German because the assistant sees both.
type topicRule struct {
	Topic    string
	Triggers []string
}

// taxonomy is ordered; earlier rules win the topic cap on ties.
var taxonomy = []topicRule{
	{Topic: "Database", Triggers: []string{
		"database", "datenbank", "sql", "postgres", "postgresql", "sqlite",
		"mysql", "mongodb", "redis", "neo4j", "query", "schema", "migration",
		"index", "tabelle", "abfrage",
	}},
	{Topic: "Deployment", Triggers: []string{
		"deploy", "deployment", "docker", "kubernetes", "k8s", "container",
		"helm", "rollout", "release", "ci/cd", "pipeline", "terraform",
		"bereitstellung",
	}},
	{Topic: "Debugging", Triggers: []string{
		"bug", "debug", "debugging", "error", "crash", "stacktrace",
		"traceback", "fix", "fehler", "absturz", "panic",
	}},
	{Topic: "Performance", Triggers: []string{
		"performance", "slow", "latency", "optimize", "optimization",
		"profiling", "throughput", "memory leak", "langsam", "leistung",
	}},
	{Topic: "Testing", Triggers: []string{
		"test", "testing", "unit test", "integration test", "coverage",
		"mock", "assertion", "testen",
	}},
	{Topic: "Security", Triggers: []string{
		"security", "auth", "authentication", "authorization", "token",
		"password", "encryption", "tls", "vulnerability", "sicherheit",
		"passwort", "verschlüsselung",
	}},
	{Topic: "API", Triggers: []string{
		"api", "endpoint", "rest", "grpc", "graphql", "http", "request",
		"response", "webhook", "schnittstelle",
	}},
	{Topic: "Frontend", Triggers: []string{
		"frontend", "ui", "css", "react", "vue", "browser", "component",
		"render", "oberfläche",
	}},
	{Topic: "Configuration", Triggers: []string{
		"config", "configuration", "environment variable", "env var",
		"settings", "flag", "konfiguration", "einstellung",
	}},
	{Topic: "Documentation", Triggers: []string{
		"documentation", "docs", "readme", "changelog", "dokumentation",
	}},
	{Topic: "Machine Learning", Triggers: []string{
		"machine learning", "ml", "model", "training", "embedding",
		"inference", "neural", "llm", "maschinelles lernen",
	}},
	{Topic: "Networking", Triggers: []string{
		"network", "networking", "dns", "tcp", "udp", "socket", "firewall",
		"proxy", "netzwerk",
	}},
}

var camelCaseRe = regexp.MustCompile(`\b(?:[A-Z][a-z0-9]+){2,}\b`)

// Topics returns up to cap topics for the content. Taxonomy matches come
// first in taxonomy order; remaining slots are filled with CamelCase tokens
// from the text, longest first.
func Topics(content string, cap int) []string {
	if cap <= 0 || content == "" {
		return nil
	}
	lower := strings.ToLower(content)
	var topics []string
	seen := make(map[string]struct{})
	for _, rule := range taxonomy {
		if len(topics) >= cap {
			return topics
		}
		for _, trigger := range rule.Triggers {
			if containsWord(lower, trigger) {
				if _, dup := seen[rule.Topic]; !dup {
					seen[rule.Topic] = struct{}{}
					topics = append(topics, rule.Topic)
				}
				break
			}
		}
	}
	if len(topics) < cap {
		for _, token := range camelTokens(content) {
			if len(topics) >= cap {
				break
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			topics = append(topics, token)
		}
	}
	return topics
}

// containsWord reports whether needle occurs in haystack on word boundaries.
// Multi-word triggers match as plain substrings.
func containsWord(haystack, needle string) bool {
	if strings.ContainsAny(needle, " /") {
		return strings.Contains(haystack, needle)
	}
	start := 0
	for {
		idx := strings.Index(haystack[start:], needle)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(needle)
		beforeOK := idx == 0 || !isWordByte(haystack[idx-1])
		afterOK := end == len(haystack) || !isWordByte(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

func camelTokens(content string) []string {
	matches := camelCaseRe.FindAllString(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var tokens []string
	for _, m := range matches {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		tokens = append(tokens, m)
	}
	sort.SliceStable(tokens, func(i, j int) bool { return len(tokens[i]) > len(tokens[j]) })
	return tokens
}
