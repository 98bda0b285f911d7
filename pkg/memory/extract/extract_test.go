package extract

import (
	"testing"

	"github.com/mnemo-ai/mnemo/pkg/memory/model"
)

func TestTopicsKeywordTaxonomy(t *testing.T) {
	topics := Topics("Fixed the PostgreSQL connection pool exhaustion bug", 3)
	if len(topics) == 0 {
		t.Fatalf("expected topics, got none")
	}
	if !contains(topics, "Database") {
		t.Fatalf("expected Database topic, got %v", topics)
	}
	if !contains(topics, "Debugging") {
		t.Fatalf("expected Debugging topic, got %v", topics)
	}
}

func TestTopicsGermanTriggers(t *testing.T) {
	topics := Topics("Die Datenbank Abfrage war zu langsam", 3)
	if !contains(topics, "Database") {
		t.Fatalf("expected Database topic from German trigger, got %v", topics)
	}
	if !contains(topics, "Performance") {
		t.Fatalf("expected Performance topic from German trigger, got %v", topics)
	}
}

func TestTopicsCamelCaseFallback(t *testing.T) {
	topics := Topics("Refactored the SessionManager lifecycle", 3)
	if !contains(topics, "SessionManager") {
		t.Fatalf("expected CamelCase topic, got %v", topics)
	}
}

func TestTopicsRespectsCap(t *testing.T) {
	content := "database deploy bug performance test security api frontend"
	topics := Topics(content, 3)
	if len(topics) != 3 {
		t.Fatalf("expected exactly 3 topics, got %v", topics)
	}
	if topics[0] != "Database" {
		t.Fatalf("expected taxonomy order to win, got %v", topics)
	}
}

func TestTopicsWordBoundaries(t *testing.T) {
	// "apidocs" must not trigger the API topic via the "api" keyword.
	topics := Topics("uploaded apidocs bundle", 5)
	if contains(topics, "API") {
		t.Fatalf("substring match leaked through word boundary: %v", topics)
	}
}

func TestTopicsEmpty(t *testing.T) {
	if topics := Topics("", 3); topics != nil {
		t.Fatalf("expected nil for empty content, got %v", topics)
	}
	if topics := Topics("anything", 0); topics != nil {
		t.Fatalf("expected nil for zero cap, got %v", topics)
	}
}

func TestEntitiesKnownTechnology(t *testing.T) {
	entities := Entities("We migrated from MySQL to PostgreSQL last week", 5)
	if !hasEntity(entities, "PostgreSQL", model.EntityTechnology) {
		t.Fatalf("expected PostgreSQL technology entity, got %v", entities)
	}
	if !hasEntity(entities, "MySQL", model.EntityTechnology) {
		t.Fatalf("expected MySQL technology entity, got %v", entities)
	}
}

func TestEntitiesCanonicalSpelling(t *testing.T) {
	entities := Entities("switch postgres to read replicas", 3)
	if !hasEntity(entities, "PostgreSQL", model.EntityTechnology) {
		t.Fatalf("expected canonical PostgreSQL spelling, got %v", entities)
	}
}

func TestEntitiesClassFileConfig(t *testing.T) {
	content := "MemoryEngine reads config.yaml and honors MAX_RETRIES"
	entities := Entities(content, 5)
	if !hasEntity(entities, "MemoryEngine", model.EntityClass) {
		t.Fatalf("expected class entity, got %v", entities)
	}
	if !hasEntity(entities, "config.yaml", model.EntityFile) {
		t.Fatalf("expected file entity, got %v", entities)
	}
	if !hasEntity(entities, "MAX_RETRIES", model.EntityConfig) {
		t.Fatalf("expected config entity, got %v", entities)
	}
}

func TestEntitiesDeduplicates(t *testing.T) {
	entities := Entities("Docker builds inside Docker running on Docker", 5)
	count := 0
	for _, e := range entities {
		if e.Name == "Docker" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one Docker entity, got %v", entities)
	}
}

func TestEntitiesRespectsCap(t *testing.T) {
	content := "Redis Docker Kafka nginx Linux"
	entities := Entities(content, 3)
	if len(entities) != 3 {
		t.Fatalf("expected 3 entities, got %v", entities)
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func hasEntity(entities []model.Entity, name, typ string) bool {
	for _, e := range entities {
		if e.Name == name && e.Type == typ {
			return true
		}
	}
	return false
}
