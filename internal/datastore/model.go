package datastore

import (
	"time"

	"github.com/google/uuid"

	"github.com/redharvest/redharvest-go/internal/detection"
	"github.com/redharvest/redharvest-go/internal/stage"
)

// AnalysisRecord is a persisted classification result. The summary fields
// mirror the analysis response; the individual detections live in child
// rows that are deleted together with the record.
type AnalysisRecord struct {
	ID             string `gorm:"primaryKey;size:36"`
	OwnerID        string `gorm:"index:idx_records_owner;size:36"`
	ImageLocation  string
	Dominant       string `gorm:"size:32"`
	DominantLabel  string
	Confidence     float64
	Total          int
	ElapsedSeconds float64
	Detections     []DetectionRecord `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time         `gorm:"index:idx_records_created"`
}

// DetectionRecord is one detected fruit inside an analysis record.
type DetectionRecord struct {
	ID         uint   `gorm:"primaryKey"`
	RecordID   string `gorm:"index;size:36"`
	Stage      string `gorm:"size:32"`
	StageAr    string
	Confidence float64
	X1         float64
	Y1         float64
	X2         float64
	Y2         float64
}

// Account roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Name         string
	Email        string `gorm:"uniqueIndex;size:191"`
	PasswordHash string
	Role         string `gorm:"size:16;default:user"`
	CreatedAt    time.Time
}

// DashboardStats summarizes every analysis an owner has saved.
type DashboardStats struct {
	TotalAnalyses        int            `json:"totalAnalyses"`
	MatureCount          int            `json:"matureCount"`
	AvgConfidencePercent int            `json:"avgConfidencePercent"`
	TotalDetections      int            `json:"totalDetections"`
	StageDistribution    map[string]int `json:"stageDistribution"`
}

// NewAnalysisRecord builds a record from a classification result. The record
// gets a fresh UUID; CreatedAt is left for the database layer to stamp.
func NewAnalysisRecord(ownerID, imageLocation string, result *detection.Result) *AnalysisRecord {
	record := &AnalysisRecord{
		ID:             uuid.New().String(),
		OwnerID:        ownerID,
		ImageLocation:  imageLocation,
		Dominant:       result.Dominant.String(),
		DominantLabel:  result.DominantLabel,
		Confidence:     result.TopConfidence(),
		Total:          result.Total,
		ElapsedSeconds: result.ElapsedSeconds,
	}

	record.Detections = make([]DetectionRecord, 0, len(result.Detections))
	for i := range result.Detections {
		det := &result.Detections[i]
		record.Detections = append(record.Detections, DetectionRecord{
			RecordID:   record.ID,
			Stage:      det.Stage.String(),
			StageAr:    det.StageAr,
			Confidence: det.Confidence,
			X1:         det.BBox.X1(),
			Y1:         det.BBox.Y1(),
			X2:         det.BBox.X2(),
			Y2:         det.BBox.Y2(),
		})
	}

	return record
}

// Result reconstructs the classification result stored in the record.
func (r *AnalysisRecord) Result() *detection.Result {
	result := &detection.Result{
		Dominant:       stage.Parse(r.Dominant),
		DominantLabel:  r.DominantLabel,
		Total:          r.Total,
		ElapsedSeconds: r.ElapsedSeconds,
	}

	result.Detections = make([]detection.Detection, 0, len(r.Detections))
	for i := range r.Detections {
		det := &r.Detections[i]
		result.Detections = append(result.Detections, detection.Detection{
			Stage:      stage.Parse(det.Stage),
			StageAr:    det.StageAr,
			Confidence: det.Confidence,
			BBox:       detection.BBox{det.X1, det.Y1, det.X2, det.Y2},
		})
	}

	return result
}

// DominantStage parses the stored dominant identifier.
func (r *AnalysisRecord) DominantStage() stage.Kind {
	return stage.Parse(r.Dominant)
}
