// Package scheduleseed loads the canonical fee schedule and in-kind price
// table from the YAML seed file into an immutable in-memory repository.
package scheduleseed

import (
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/jkimani/karo/core/fees"
)

// Repository serves the fee reference data. It is immutable after Load and
// safe under unlimited concurrent readers.
type Repository struct {
	entries []fees.ScheduleEntry
	prices  map[string]float64
}

var _ fees.ScheduleRepository = (*Repository)(nil) // interface compliance check

type (
	componentRow struct {
		Name   string `yaml:"name"`
		Amount int    `yaml:"amount"`
	}

	entryRow struct {
		GradeLevel       string         `yaml:"grade_level"`
		BoardingStatus   string         `yaml:"boarding_status"`
		HasTransport     bool           `yaml:"has_transport"`
		TransportRoutes  map[string]int `yaml:"transport_routes"`
		TermlyComponents []componentRow `yaml:"components"`
		TotalCalculated  int            `yaml:"total_calculated"`
	}

	seedFile struct {
		Entries      []entryRow         `yaml:"entries"`
		InKindPrices map[string]float64 `yaml:"in_kind_prices"`
	}
)

// Load reads the YAML seed at path.
func Load(path string) (*Repository, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading fee schedule %s", path)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, errors.Wrapf(err, "parsing fee schedule %s", path)
	}

	entries := make([]fees.ScheduleEntry, 0, len(seed.Entries))
	for _, row := range seed.Entries {
		components := make([]fees.TermlyComponent, 0, len(row.TermlyComponents))
		for _, c := range row.TermlyComponents {
			components = append(components, fees.TermlyComponent{Name: c.Name, Amount: c.Amount})
		}
		entries = append(entries, fees.ScheduleEntry{
			GradeLevel:       fees.GradeLevel(row.GradeLevel),
			BoardingStatus:   fees.BoardingStatus(row.BoardingStatus),
			HasTransport:     row.HasTransport,
			TransportRoutes:  row.TransportRoutes,
			TermlyComponents: components,
			TotalCalculated:  row.TotalCalculated,
		})
	}
	return NewRepository(entries, seed.InKindPrices)
}

// NewRepository builds a repository from in-memory reference data, checking
// every entry's integrity first.
func NewRepository(entries []fees.ScheduleEntry, prices map[string]float64) (*Repository, error) {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if err := e.CheckIntegrity(); err != nil {
			return nil, errors.Wrap(err, "fee schedule integrity")
		}
		key := entryKey(e.GradeLevel, e.BoardingStatus, e.HasTransport)
		if seen[key] {
			return nil, errors.Errorf("duplicate schedule entry for %s %s (transport=%v)",
				e.GradeLevel, e.BoardingStatus, e.HasTransport)
		}
		seen[key] = true
	}
	for item, uv := range prices {
		if uv <= 0 {
			return nil, errors.Errorf("in-kind price for %q must be positive", item)
		}
	}
	return &Repository{entries: entries, prices: prices}, nil
}

func (repo *Repository) GetEntry(grade fees.GradeLevel, status fees.BoardingStatus, withTransport bool) (fees.ScheduleEntry, error) {
	for _, e := range repo.entries {
		if e.GradeLevel == grade && e.BoardingStatus == status && e.HasTransport == withTransport {
			return e, nil
		}
	}
	return fees.ScheduleEntry{}, fees.ErrScheduleNotFound
}

func (repo *Repository) AllEntries() ([]fees.ScheduleEntry, error) {
	out := make([]fees.ScheduleEntry, len(repo.entries))
	copy(out, repo.entries)
	return out, nil
}

func (repo *Repository) InKindUnitValue(itemType string) (float64, error) {
	for name, uv := range repo.prices {
		if strings.EqualFold(name, itemType) {
			return uv, nil
		}
	}
	return 0, fees.ErrUnknownItemType
}

func (repo *Repository) InKindItems() (map[string]float64, error) {
	out := make(map[string]float64, len(repo.prices))
	for k, v := range repo.prices {
		out[k] = v
	}
	return out, nil
}

func entryKey(grade fees.GradeLevel, status fees.BoardingStatus, withTransport bool) string {
	key := string(grade) + "|" + string(status)
	if withTransport {
		key += "|transport"
	}
	return key
}
