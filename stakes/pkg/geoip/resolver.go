package geoip

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/malbeclabs/stakes/stakes/pkg/engine"
	"github.com/oschwald/geoip2-golang"
)

type Resolver interface {
	Resolve(ip net.IP) *engine.Geo
}

type resolver struct {
	log *slog.Logger

	cityDB *geoip2.Reader
	asnDB  *geoip2.Reader
}

func NewResolver(log *slog.Logger, cityDB *geoip2.Reader, asnDB *geoip2.Reader) (*resolver, error) {
	if log == nil {
		return nil, fmt.Errorf("log is nil")
	}
	if cityDB == nil {
		return nil, fmt.Errorf("cityDB is nil")
	}
	if asnDB == nil {
		return nil, fmt.Errorf("asnDB is nil")
	}
	return &resolver{
		log:    log,
		cityDB: cityDB,
		asnDB:  asnDB,
	}, nil
}

// Databases holds the opened GeoLite2 City and ASN readers.
type Databases struct {
	City *geoip2.Reader
	ASN  *geoip2.Reader
}

// Open opens the GeoLite2 City and ASN databases at the given paths.
func Open(cityPath, asnPath string) (*Databases, error) {
	cityDB, err := geoip2.Open(cityPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open city database: %w", err)
	}
	asnDB, err := geoip2.Open(asnPath)
	if err != nil {
		_ = cityDB.Close()
		return nil, fmt.Errorf("failed to open asn database: %w", err)
	}
	return &Databases{City: cityDB, ASN: asnDB}, nil
}

func (d *Databases) Close() error {
	return errors.Join(d.City.Close(), d.ASN.Close())
}

func (r *resolver) Resolve(ip net.IP) *engine.Geo {
	if ip == nil {
		return nil
	}

	if r.cityDB == nil && r.asnDB == nil {
		return nil
	}

	var geo engine.Geo

	if r.cityDB != nil {
		rec, err := r.cityDB.City(ip)
		if err != nil {
			r.log.Debug("geoip: city lookup failed", "ip", ip.String(), "error", err)
		} else {
			geo.CountryCode = rec.Country.IsoCode
			geo.Country = rec.Country.Names["en"]
			if len(rec.Subdivisions) > 0 {
				geo.Region = rec.Subdivisions[0].Names["en"]
			}
			geo.City = rec.City.Names["en"]
			geo.Latitude = rec.Location.Latitude
			geo.Longitude = rec.Location.Longitude
		}
	}

	if r.asnDB != nil {
		rec, err := r.asnDB.ASN(ip)
		if err != nil {
			r.log.Debug("geoip: asn lookup failed", "ip", ip.String(), "error", err)
		} else {
			geo.ASN = rec.AutonomousSystemNumber
			geo.ASNOrg = rec.AutonomousSystemOrganization
		}
	}

	if geo.CountryCode == "" && geo.ASN == 0 {
		return nil
	}
	return &geo
}

// ParseIP accepts "ip" and "ip:port" forms.
func ParseIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return net.ParseIP(addr)
}

// EnrichPeers returns copies of peers with their geolocation resolved. Peers whose address can
// not be parsed or resolved keep a nil Geo.
func EnrichPeers(log *slog.Logger, r Resolver, peers []engine.PeerRecord) []engine.PeerRecord {
	out := make([]engine.PeerRecord, len(peers))
	var unresolved int
	for i, p := range peers {
		out[i] = p
		ip := ParseIP(p.IP)
		if ip == nil {
			unresolved++
			continue
		}
		out[i].Geo = r.Resolve(ip)
		if out[i].Geo == nil {
			unresolved++
		}
	}
	if unresolved > 0 {
		log.Info("geoip: peers without geolocation", "count", unresolved, "total", len(peers))
	}
	return out
}

// EnrichValidators resolves the geolocation of already joined validators.
func EnrichValidators(log *slog.Logger, r Resolver, validators []engine.ValidatorRecord) []engine.ValidatorRecord {
	out := make([]engine.ValidatorRecord, len(validators))
	var unresolved int
	for i, v := range validators {
		out[i] = v
		ip := ParseIP(v.IP)
		if ip == nil {
			unresolved++
			continue
		}
		if geo := r.Resolve(ip); geo != nil {
			out[i].Geo = geo
		} else {
			unresolved++
		}
	}
	if unresolved > 0 {
		log.Info("geoip: validators without geolocation", "count", unresolved, "total", len(validators))
	}
	return out
}
