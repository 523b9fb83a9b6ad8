package datastore

import (
	"context"
	"math"

	"github.com/redharvest/redharvest-go/internal/errors"
)

// Dashboard aggregates all of the owner's analyses. The fold walks every
// record: total count, how many came out dominant-mature, the average top
// confidence as a rounded percentage, the total number of detected fruits
// and the dominant-stage distribution. An owner with no records gets zeros
// and an empty distribution, never an error.
func (ds *DataStore) Dashboard(ctx context.Context, ownerID string) (*DashboardStats, error) {
	if err := ds.checkConnection(); err != nil {
		return nil, err
	}

	var records []AnalysisRecord
	err := ds.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Find(&records).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "dashboard").
			Build()
	}

	return FoldStats(records), nil
}

// FoldStats computes dashboard statistics from a set of records. Shared by
// the database and local file backends.
func FoldStats(records []AnalysisRecord) *DashboardStats {
	stats := &DashboardStats{
		StageDistribution: make(map[string]int),
	}

	var totalConfidence float64
	for i := range records {
		r := &records[i]
		stats.TotalAnalyses++
		stats.TotalDetections += r.Total
		totalConfidence += r.Confidence
		if r.Dominant == matureStage {
			stats.MatureCount++
		}
		if r.Dominant != "" {
			stats.StageDistribution[r.Dominant]++
		}
	}

	if stats.TotalAnalyses > 0 {
		stats.AvgConfidencePercent = int(math.Round(totalConfidence / float64(stats.TotalAnalyses) * 100))
	}

	return stats
}
