package store

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/SyedAaraiz0050/territory-intel/internal/model"
)

type scannable interface {
	Scan(dest ...any) error
}

// scanBusiness reads one business row into a record. Shared by both backends:
// the column order is fixed by businessColumns/pgBusinessColumns and the null
// handling goes through database/sql null types, which pgx also accepts.
func scanBusiness(row scannable) (*model.BusinessRecord, error) {
	var rec model.BusinessRecord
	var (
		name, address, phone, website, category, mapsURL, status sql.NullString
		lat, lng, rating, totalScore                             sql.NullFloat64
		territory, hours, contentHash, clsJSON, clsHash          sql.NullString
		reviewCount                                              sql.NullInt64
	)

	err := row.Scan(
		&rec.ID, &name, &address, &phone, &website, &category, &mapsURL, &status,
		&lat, &lng, &territory, &rating, &reviewCount, &hours,
		&contentHash, &clsJSON, &clsHash, &totalScore,
		&rec.FirstSeen, &rec.LastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan business")
	}

	rec.Identity = model.Identity{
		Name:           nullStr(name),
		Address:        nullStr(address),
		Phone:          nullStr(phone),
		Website:        nullStr(website),
		Category:       nullStr(category),
		MapsURL:        nullStr(mapsURL),
		BusinessStatus: nullStr(status),
	}
	rec.Location = model.Location{
		Lat:       nullFloat(lat),
		Lng:       nullFloat(lng),
		Territory: nullStr(territory),
	}
	rec.Signals = model.OperationalSignals{
		Rating:      nullFloat(rating),
		ReviewCount: nullInt(reviewCount),
		Hours:       nullStr(hours),
	}
	rec.WebsiteContentHash = nullStr(contentHash)
	rec.ClassificationContentHash = nullStr(clsHash)
	rec.TotalScore = nullFloat(totalScore)

	if clsJSON.Valid {
		rec.Classification = &model.Classification{}
		if err := json.Unmarshal([]byte(clsJSON.String), rec.Classification); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal classification")
		}
	}
	return &rec, nil
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
