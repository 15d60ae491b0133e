package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/chrissnell/xrdquant/internal/fps"
	"github.com/chrissnell/xrdquant/internal/types"
)

// FitRow is one stored fit
type FitRow struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;column:id"`
	Sample       string          `gorm:"column:sample;not null;index"`
	Library      string          `gorm:"column:library;not null;index"`
	Mode         string          `gorm:"column:mode;not null"`
	Source       string          `gorm:"column:source"`
	CreatedAt    time.Time       `gorm:"column:created_at;not null;index"`
	Rwp          float64         `gorm:"column:rwp"`
	R            float64         `gorm:"column:r"`
	Delta        float64         `gorm:"column:delta"`
	Correlation  float64         `gorm:"column:correlation"`
	Alignment    float64         `gorm:"column:alignment"`
	Standard     string          `gorm:"column:std"`
	StandardConc float64         `gorm:"column:std_conc"`
	Closed       bool            `gorm:"column:closed"`
	TwoTheta     pq.Float64Array `gorm:"column:two_theta;type:double precision[]"`
	Measured     pq.Float64Array `gorm:"column:measured;type:double precision[]"`
	Fitted       pq.Float64Array `gorm:"column:fitted;type:double precision[]"`
	Phases       []FitPhaseRow   `gorm:"foreignKey:FitID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for FitRow
func (FitRow) TableName() string {
	return "fits"
}

// FitPhaseRow is one reference of a stored fit. Removed references carry the
// removal reason; reported ones leave it empty.
type FitPhaseRow struct {
	ID            uint      `gorm:"primaryKey;autoIncrement;column:id"`
	FitID         uuid.UUID `gorm:"type:uuid;not null;index;column:fit_id"`
	Position      int       `gorm:"column:position"`
	PhaseID       string    `gorm:"column:phase_id;not null"`
	Name          string    `gorm:"column:name"`
	RIR           float64   `gorm:"column:rir"`
	Coefficient   float64   `gorm:"column:coefficient"`
	Shift         float64   `gorm:"column:shift"`
	Concentration float64   `gorm:"column:concentration"`
	Reason        string    `gorm:"column:reason"`
	LOD           float64   `gorm:"column:lod"`
}

// TableName specifies the table name for FitPhaseRow
func (FitPhaseRow) TableName() string {
	return "fit_phases"
}

// NewFitRow flattens a fit record into its table rows
func NewFitRow(rec types.FitRecord) FitRow {
	res := rec.Result
	row := FitRow{
		ID:           rec.ID,
		Sample:       rec.Sample,
		Library:      rec.Library,
		Mode:         string(rec.Mode),
		Source:       rec.Source,
		CreatedAt:    rec.CreatedAt,
		Rwp:          res.Rwp,
		R:            res.R,
		Delta:        res.Delta,
		Correlation:  res.Correlation,
		Alignment:    res.Alignment,
		Standard:     res.Standard,
		StandardConc: res.StandardConc,
		Closed:       res.Closed,
		TwoTheta:     pq.Float64Array(res.TwoTheta),
		Measured:     pq.Float64Array(res.Measured),
		Fitted:       pq.Float64Array(res.Fitted),
	}

	pos := 0
	for _, p := range res.Phases {
		row.Phases = append(row.Phases, FitPhaseRow{
			FitID:         rec.ID,
			Position:      pos,
			PhaseID:       p.ID,
			Name:          p.Name,
			RIR:           p.RIR,
			Coefficient:   p.Coefficient,
			Shift:         p.Shift,
			Concentration: p.Concentration,
		})
		pos++
	}
	for _, r := range res.Removed {
		row.Phases = append(row.Phases, FitPhaseRow{
			FitID:         rec.ID,
			Position:      pos,
			PhaseID:       r.ID,
			Name:          r.Name,
			Concentration: r.Concentration,
			Reason:        r.Reason,
			LOD:           r.LOD,
		})
		pos++
	}
	return row
}

// Record rebuilds the fit record from its table rows. Phases must be ordered
// by position.
func (row FitRow) Record() types.FitRecord {
	res := &fps.Result{
		Sample:       row.Sample,
		Library:      row.Library,
		TwoTheta:     []float64(row.TwoTheta),
		Measured:     []float64(row.Measured),
		Fitted:       []float64(row.Fitted),
		Alignment:    row.Alignment,
		Standard:     row.Standard,
		StandardConc: row.StandardConc,
		Closed:       row.Closed,
		Stats: fps.Stats{
			Rwp:         row.Rwp,
			R:           row.R,
			Delta:       row.Delta,
			Correlation: row.Correlation,
		},
	}
	if n := len(res.Measured); n == len(res.Fitted) {
		res.Residuals = make([]float64, n)
		for i := range res.Measured {
			res.Residuals[i] = res.Measured[i] - res.Fitted[i]
		}
	}

	for _, p := range row.Phases {
		if p.Reason != "" {
			res.Removed = append(res.Removed, fps.Removal{
				ID:            p.PhaseID,
				Name:          p.Name,
				Reason:        p.Reason,
				Concentration: p.Concentration,
				LOD:           p.LOD,
			})
			continue
		}
		res.Phases = append(res.Phases, fps.PhaseResult{
			ID:            p.PhaseID,
			Name:          p.Name,
			RIR:           p.RIR,
			Coefficient:   p.Coefficient,
			Shift:         p.Shift,
			Concentration: p.Concentration,
		})
	}
	res.Grouped = fps.GroupPhases(res.Phases)

	return types.FitRecord{
		ID:        row.ID,
		Sample:    row.Sample,
		Library:   row.Library,
		Mode:      types.FitMode(row.Mode),
		Source:    row.Source,
		CreatedAt: row.CreatedAt,
		Result:    res,
	}
}
