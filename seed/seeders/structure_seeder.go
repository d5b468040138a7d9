package seeders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pathwise-labs/progress_api/dto"
	"github.com/pathwise-labs/progress_api/shared"
)

// StructureSeeder publishes subject structure documents through the admin
// API so the engine assigns versions and bit positions itself.
type StructureSeeder struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewStructureSeeder creates a new structure seeder
func NewStructureSeeder(baseURL, apiKey string) *StructureSeeder {
	return &StructureSeeder{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SeedAll publishes every built-in sample subject.
func (s *StructureSeeder) SeedAll() error {
	for _, sample := range sampleSubjects() {
		if err := s.publishDocument(sample.SubjectID, sample.Document); err != nil {
			return err
		}
	}

	log.Println("Structure seeding completed successfully")
	return nil
}

// SeedSubject publishes one built-in sample subject by id.
func (s *StructureSeeder) SeedSubject(subjectID string) error {
	for _, sample := range sampleSubjects() {
		if sample.SubjectID == subjectID {
			return s.publishDocument(sample.SubjectID, sample.Document)
		}
	}
	return fmt.Errorf("unknown built-in subject %q", subjectID)
}

// PublishFile publishes a structure document read from disk.
func (s *StructureSeeder) PublishFile(subjectID, path string) error {
	doc, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read structure document: %w", err)
	}
	if !json.Valid(doc) {
		return fmt.Errorf("%s is not valid JSON", path)
	}
	return s.publishDocument(subjectID, doc)
}

type publishResult struct {
	Code    int                          `json:"code"`
	Message string                       `json:"message"`
	Data    dto.StructureVersionResponse `json:"data"`
}

func (s *StructureSeeder) publishDocument(subjectID string, doc []byte) error {
	url := fmt.Sprintf("%s/api/v1/admin/subjects/%s/structure", s.baseURL, subjectID)

	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(doc))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(shared.HeaderServiceKey, s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish %s: %w", subjectID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("publish %s: read response: %w", subjectID, err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("publish %s: %s: %s", subjectID, resp.Status, strings.TrimSpace(string(body)))
	}

	var result publishResult
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("publish %s: decode response: %w", subjectID, err)
	}

	log.Printf("Published %s: version %d, %d lessons (%d new)",
		subjectID, result.Data.Version, result.Data.LessonCount, len(result.Data.NewLessons))
	return nil
}
