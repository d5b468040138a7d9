package seeders

import "encoding/json"

// SampleSubject is one built-in subject ready to publish.
type SampleSubject struct {
	SubjectID string
	Document  []byte
}

// docNode mirrors the authoring document schema. New lessons carry no bit
// position; the engine assigns one on publish.
type docNode struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	Type       string    `json:"type,omitempty"`
	Sequential *bool     `json:"sequential,omitempty"`
	SortOrder  int       `json:"sortOrder"`
	Children   []docNode `json:"children,omitempty"`
}

func lesson(id, title string, order int) docNode {
	return docNode{ID: id, Title: title, Type: "lesson", SortOrder: order}
}

// sampleSubjects returns the built-in demo subjects used for local
// development environments.
func sampleSubjects() []SampleSubject {
	sequential := true
	free := false

	math := docNode{
		ID:    "math-7",
		Title: "Mathematics 7",
		Type:  "subject",
		Children: []docNode{
			{
				ID:         "ch-fractions",
				Title:      "Fractions",
				Type:       "container",
				Sequential: &sequential,
				SortOrder:  1,
				Children: []docNode{
					lesson("lesson-fractions-01", "What Is a Fraction?", 1),
					lesson("lesson-fractions-02", "Comparing Fractions", 2),
					lesson("lesson-fractions-03", "Adding and Subtracting", 3),
				},
			},
			{
				ID:         "ch-decimals",
				Title:      "Decimals",
				Type:       "container",
				Sequential: &sequential,
				SortOrder:  2,
				Children: []docNode{
					lesson("lesson-decimals-01", "Place Value", 1),
					lesson("lesson-decimals-02", "Decimal Arithmetic", 2),
				},
			},
			{
				ID:         "ch-geometry",
				Title:      "Geometry",
				Type:       "container",
				Sequential: &free,
				SortOrder:  3,
				Children: []docNode{
					lesson("lesson-geometry-01", "Angles", 1),
					lesson("lesson-geometry-02", "Triangles", 2),
				},
			},
		},
	}

	science := docNode{
		ID:    "science-7",
		Title: "Science 7",
		Type:  "subject",
		Children: []docNode{
			{
				ID:         "unit-biology",
				Title:      "Biology",
				Type:       "container",
				Sequential: &free,
				SortOrder:  1,
				Children: []docNode{
					lesson("lesson-cells-01", "Cells", 1),
					lesson("lesson-plants-01", "Plant Life", 2),
				},
			},
			{
				ID:         "unit-physics",
				Title:      "Physics",
				Type:       "container",
				Sequential: &sequential,
				SortOrder:  2,
				Children: []docNode{
					lesson("lesson-motion-01", "Motion", 1),
					lesson("lesson-forces-01", "Forces", 2),
				},
			},
		},
	}

	return []SampleSubject{
		{SubjectID: math.ID, Document: mustJSON(math)},
		{SubjectID: science.ID, Document: mustJSON(science)},
	}
}

func mustJSON(v interface{}) []byte {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	return data
}
