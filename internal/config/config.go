// Package config reads process configuration from the environment, with an
// optional YAML vendor roster for deployments that template their topology.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// VendorEndpoint is one configured vendor backend. The set is fixed for the
// process lifetime.
type VendorEndpoint struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	DisplayName string `yaml:"name"`
}

func (e VendorEndpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

func (e VendorEndpoint) String() string {
	return fmt.Sprintf("%s:%d:%s", e.Host, e.Port, e.DisplayName)
}

// ParseVendors parses the VENDORS format "host:port:name,host:port:name".
// Malformed entries are skipped and reported.
func ParseVendors(s string) ([]VendorEndpoint, []error) {
	var endpoints []VendorEndpoint
	var errs []error

	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, ":")
		if len(parts) != 3 {
			errs = append(errs, fmt.Errorf("invalid vendor %q, expected host:port:name", raw))
			continue
		}
		port, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid port in vendor %q: %w", raw, err))
			continue
		}
		endpoints = append(endpoints, VendorEndpoint{
			Host:        strings.TrimSpace(parts[0]),
			Port:        port,
			DisplayName: strings.TrimSpace(parts[2]),
		})
	}
	return endpoints, errs
}

type vendorsFile struct {
	Vendors []VendorEndpoint `yaml:"vendors"`
}

// LoadVendorsFile reads a YAML roster: {vendors: [{host, port, name}, ...]}.
func LoadVendorsFile(path string) ([]VendorEndpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vf vendorsFile
	if err := yaml.NewDecoder(f).Decode(&vf); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return vf.Vendors, nil
}

// Vendors resolves the endpoint set: VENDORS_FILE wins when set, otherwise
// the VENDORS env string is parsed.
func Vendors() ([]VendorEndpoint, []error) {
	if path := os.Getenv("VENDORS_FILE"); path != "" {
		eps, err := LoadVendorsFile(path)
		if err != nil {
			return nil, []error{err}
		}
		return eps, nil
	}
	return ParseVendors(os.Getenv("VENDORS"))
}

func GetString(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func GetInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func GetBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func GetDurationMs(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
