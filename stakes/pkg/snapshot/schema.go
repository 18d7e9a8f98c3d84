package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
)

// Amount is a non-negative integer that decodes from either a JSON number or a quoted decimal
// string. The node APIs quote nAVAX amounts and unix times; older snapshots store numbers.
type Amount uint64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		// Integral floats such as 2.5e+15 are accepted.
		f, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil || f < 0 || f >= math.MaxUint64 || f != math.Trunc(f) {
			return fmt.Errorf("invalid amount %q: %w", data, err)
		}
		v = uint64(f)
	}
	*a = Amount(v)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return strconv.AppendUint(nil, uint64(a), 10), nil
}

// Geo is the nested geolocation object of extended records.
type Geo struct {
	Country  *GeoName     `json:"country,omitempty"`
	City     *GeoCity     `json:"city,omitempty"`
	ASNum    *GeoASN      `json:"asnum,omitempty"`
	Location *GeoLocation `json:"location,omitempty"`
}

type GeoName struct {
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

type GeoCity struct {
	Name   string `json:"name,omitempty"`
	Region string `json:"region,omitempty"`
}

type GeoASN struct {
	Number uint   `json:"number,omitempty"`
	Name   string `json:"name,omitempty"`
}

type GeoLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func geoFromEngine(g *engine.Geo) *Geo {
	if g == nil {
		return nil
	}
	out := &Geo{
		Location: &GeoLocation{Latitude: g.Latitude, Longitude: g.Longitude},
	}
	if g.CountryCode != "" || g.Country != "" {
		out.Country = &GeoName{Code: g.CountryCode, Name: g.Country}
	}
	if g.City != "" || g.Region != "" {
		out.City = &GeoCity{Name: g.City, Region: g.Region}
	}
	if g.ASN != 0 || g.ASNOrg != "" {
		out.ASNum = &GeoASN{Number: g.ASN, Name: g.ASNOrg}
	}
	return out
}

func (g *Geo) toEngine() *engine.Geo {
	if g == nil {
		return nil
	}
	var out engine.Geo
	if g.Country != nil {
		out.CountryCode = g.Country.Code
		out.Country = g.Country.Name
	}
	if g.City != nil {
		out.City = g.City.Name
		out.Region = g.City.Region
	}
	if g.ASNum != nil {
		out.ASN = g.ASNum.Number
		out.ASNOrg = g.ASNum.Name
	}
	if g.Location != nil {
		out.Latitude = g.Location.Latitude
		out.Longitude = g.Location.Longitude
	}
	return &out
}

// Validator is the on-disk validator record. Weight fields are pointers so a missing field
// can be told apart from a zero stake.
type Validator struct {
	ID              string   `json:"id"`
	RewardAddresses []string `json:"rewardAddresses"`
	Weight          *Amount  `json:"weight"`
	DelegatorWeight *Amount  `json:"delegatorWeight,omitempty"`
	DelegatedWeight *Amount  `json:"delegatedWeight,omitempty"` // legacy name of delegatorWeight
	TotalWeight     *Amount  `json:"totalWeight,omitempty"`
	StartTime       Amount   `json:"startTime,omitempty"`
	EndTime         Amount   `json:"endTime,omitempty"`
	IP              string   `json:"ip,omitempty"`
	Version         string   `json:"version,omitempty"`
	Geo             *Geo     `json:"geo,omitempty"`
}

// Peer is the on-disk peer record.
type Peer struct {
	ID      string `json:"id"`
	IP      string `json:"ip"`
	Version string `json:"version,omitempty"`
	Geo     *Geo   `json:"geo,omitempty"`
}

// FromRecord converts an engine record into its on-disk form.
func FromRecord(v engine.ValidatorRecord) Validator {
	weight := Amount(v.Weight)
	delegated := Amount(v.DelegatedWeight)
	total := Amount(v.TotalWeight())
	out := Validator{
		ID:              v.ID,
		RewardAddresses: v.RewardAddresses,
		Weight:          &weight,
		DelegatorWeight: &delegated,
		TotalWeight:     &total,
		IP:              v.IP,
		Version:         v.Version,
		Geo:             geoFromEngine(v.Geo),
	}
	if out.RewardAddresses == nil {
		out.RewardAddresses = []string{}
	}
	if !v.StartTime.IsZero() {
		out.StartTime = Amount(v.StartTime.Unix())
	}
	if !v.EndTime.IsZero() {
		out.EndTime = Amount(v.EndTime.Unix())
	}
	return out
}

// ToRecord converts an on-disk record into an engine record. A record without an id or a weight
// is rejected; a record without reward addresses is returned together with a
// *engine.MissingFieldError so the caller can keep it and report it.
func (v Validator) ToRecord(index int) (engine.ValidatorRecord, error) {
	if v.ID == "" {
		return engine.ValidatorRecord{}, &engine.MissingFieldError{Index: index, Field: "id"}
	}
	if v.Weight == nil {
		return engine.ValidatorRecord{}, &engine.MissingFieldError{Index: index, RecordID: v.ID, Field: "weight"}
	}

	rec := engine.ValidatorRecord{
		ID:              v.ID,
		RewardAddresses: engine.NormalizeAddresses(v.RewardAddresses),
		Weight:          uint64(*v.Weight),
		IP:              v.IP,
		Version:         v.Version,
		Geo:             v.Geo.toEngine(),
	}
	switch {
	case v.DelegatorWeight != nil:
		rec.DelegatedWeight = uint64(*v.DelegatorWeight)
	case v.DelegatedWeight != nil:
		rec.DelegatedWeight = uint64(*v.DelegatedWeight)
	case v.TotalWeight != nil && uint64(*v.TotalWeight) >= rec.Weight:
		rec.DelegatedWeight = uint64(*v.TotalWeight) - rec.Weight
	}
	if v.StartTime != 0 {
		rec.StartTime = time.Unix(int64(v.StartTime), 0).UTC()
	}
	if v.EndTime != 0 {
		rec.EndTime = time.Unix(int64(v.EndTime), 0).UTC()
	}

	if len(rec.RewardAddresses) == 0 {
		return rec, &engine.MissingFieldError{Index: index, RecordID: v.ID, Field: "rewardAddresses"}
	}
	return rec, nil
}

func FromPeer(p engine.PeerRecord) Peer {
	return Peer{ID: p.ID, IP: p.IP, Version: p.Version, Geo: geoFromEngine(p.Geo)}
}

func (p Peer) ToRecord(index int) (engine.PeerRecord, error) {
	if p.ID == "" {
		return engine.PeerRecord{}, &engine.MissingFieldError{Index: index, Field: "id"}
	}
	return engine.PeerRecord{ID: p.ID, IP: p.IP, Version: p.Version, Geo: p.Geo.toEngine()}, nil
}

// DecodeValidators converts decoded records, returning the usable records and one error per
// excluded or degraded record.
func DecodeValidators(raw []Validator, offset int) ([]engine.ValidatorRecord, []error) {
	records := make([]engine.ValidatorRecord, 0, len(raw))
	var problems []error
	for i, v := range raw {
		rec, err := v.ToRecord(offset + i)
		if err != nil {
			problems = append(problems, err)
			if rec.ID == "" {
				continue
			}
		}
		records = append(records, rec)
	}
	return records, problems
}

// Report is the persisted summary of one analysis. The grouped and ungrouped reports of a date
// share this schema.
type Report struct {
	Date       string             `json:"date"`
	Grouped    bool               `json:"grouped"`
	Validators int                `json:"validators"`
	Units      int                `json:"units"`
	Degraded   int                `json:"degraded"`
	MissingGeo int                `json:"missing_geo"`
	Including  ReportMetrics      `json:"including_delegations"`
	Excluding  ReportMetrics      `json:"excluding_delegations"`
	References map[string]float64 `json:"references"`
	Top        []ReportEntity     `json:"top,omitempty"`
}

type ReportMetrics struct {
	Total    Amount                 `json:"total"`
	Gini     float64                `json:"gini"`
	Nakamoto []engine.NakamotoPoint `json:"nakamoto"`
}

type ReportEntity struct {
	Rank        int      `json:"rank"`
	Addresses   []string `json:"addresses,omitempty"`
	IDs         []string `json:"ids"`
	Weight      Amount   `json:"weight"`
	TotalWeight Amount   `json:"totalWeight"`
	Share       float64  `json:"share"`
}

// NewReport summarizes res, keeping at most top ranked units.
func NewReport(res *engine.Result, top int) Report {
	r := Report{
		Date:       res.Date.Format(time.DateOnly),
		Grouped:    res.Grouped,
		Validators: res.Validators,
		Units:      res.Units,
		Degraded:   res.Group.Degraded,
		MissingGeo: res.MissingGeo,
		Including:  reportMetrics(res.Including),
		Excluding:  reportMetrics(res.Excluding),
		References: make(map[string]float64, len(res.References)),
	}
	for _, ref := range res.References {
		r.References[string(ref.Kind)] = ref.Gini
	}
	for i, e := range res.Ranked {
		if i >= top {
			break
		}
		var share float64
		if res.Including.Total > 0 {
			share = float64(e.TotalWeight) / float64(res.Including.Total)
		}
		r.Top = append(r.Top, ReportEntity{
			Rank:        i + 1,
			Addresses:   e.Addresses,
			IDs:         e.IDs(),
			Weight:      Amount(e.Weight),
			TotalWeight: Amount(e.TotalWeight),
			Share:       share,
		})
	}
	return r
}

func reportMetrics(m engine.Metrics) ReportMetrics {
	return ReportMetrics{Total: Amount(m.Total), Gini: m.Gini, Nakamoto: m.Nakamoto}
}
