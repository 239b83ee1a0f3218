package redis

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPort is used when the connection URL carries no port.
const DefaultPort = 6379

// Descriptor is the parsed form of a connection URL.
type Descriptor struct {
	Host     string
	Port     int
	DB       int
	Username string
	Password string
}

func (d Descriptor) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// ParseURL extracts host, port, database index and credentials from raw.
func ParseURL(raw string) (Descriptor, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: parsing url: %v", ErrConfig, err)
	}

	d := Descriptor{
		Host: u.Hostname(),
		Port: DefaultPort,
	}
	if p := u.Port(); p != "" {
		d.Port, err = strconv.Atoi(p)
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: invalid port %q", ErrConfig, p)
		}
	}

	if path := strings.Trim(u.Path, "/"); path != "" {
		d.DB, err = strconv.Atoi(path)
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: invalid database index %q", ErrConfig, path)
		}
	}

	if u.User != nil {
		d.Username = u.User.Username()
		d.Password, _ = u.User.Password()
	}
	return d, nil
}
