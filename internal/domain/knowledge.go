package domain

// KnowledgePoint is one extracted knowledge point from an analyzed image.
type KnowledgePoint struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

// Topic converts a knowledge point into the identity the dialogue engine
// converses about.
func (k KnowledgePoint) Topic() Topic {
	return Topic{ID: k.ID, Title: k.Title, Description: k.Description}
}

// FunExample illustrates a key knowledge point.
type FunExample struct {
	KnowledgePointID string `json:"knowledgePointId"`
	Title            string `json:"title"`
	Content          string `json:"content"`
	ImageURL         string `json:"imageUrl,omitempty"`
}

// KnowledgeAnalysis is the structured result of analyzing an uploaded image.
type KnowledgeAnalysis struct {
	DetailedExplanation string           `json:"detailedExplanation"`
	Prerequisites       []KnowledgePoint `json:"prerequisites"`
	KeyPoints           []KnowledgePoint `json:"keyPoints"`
	FunExamples         []FunExample     `json:"funExamples"`
	Postrequisites      []KnowledgePoint `json:"postrequisites"`
	Conclusion          string           `json:"conclusion"`
}
