package report

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

type DestinationKind string

const (
	DestinationBlob  DestinationKind = "blob"
	DestinationS3    DestinationKind = "s3"
	DestinationKafka DestinationKind = "kafka"
	DestinationFile  DestinationKind = "file"

	blobHostSuffix = ".blob.core.windows.net"
)

var ErrInvalidDestination = errors.New("invalid destination")

// Destination is a parsed output location.
//
//	https://<account>.blob.core.windows.net/<container>/<prefix>
//	s3://<bucket>/<prefix>
//	kafka://<topic>
//	/a/local/path or a relative one
type Destination struct {
	Raw  string
	Kind DestinationKind

	// ServiceURL is the blob service endpoint, without container.
	ServiceURL string
	// Container is the blob container or the s3 bucket.
	Container string
	Prefix    string
	Topic     string
	Path      string
}

func (d Destination) String() string {
	return d.Raw
}

func ParseDestination(raw string) (Destination, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Destination{}, fmt.Errorf("%w: empty", ErrInvalidDestination)
	}

	if !strings.Contains(raw, "://") {
		return Destination{Raw: raw, Kind: DestinationFile, Path: filepath.Clean(raw)}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Destination{}, fmt.Errorf("%w: %w", ErrInvalidDestination, err)
	}

	switch u.Scheme {
	case "s3":
		if u.Host == "" {
			return Destination{}, fmt.Errorf("%w: missing bucket in %q", ErrInvalidDestination, raw)
		}

		return Destination{Raw: raw, Kind: DestinationS3, Container: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
	case "kafka":
		topic := u.Host + strings.TrimSuffix(u.Path, "/")
		if topic == "" || strings.Contains(topic, "/") {
			return Destination{}, fmt.Errorf("%w: invalid topic in %q", ErrInvalidDestination, raw)
		}

		return Destination{Raw: raw, Kind: DestinationKafka, Topic: topic}, nil
	case "https":
		if !strings.HasSuffix(u.Host, blobHostSuffix) {
			return Destination{}, fmt.Errorf("%w: %q is not a blob storage account", ErrInvalidDestination, u.Host)
		}

		container, prefix, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
		if container == "" {
			return Destination{}, fmt.Errorf("%w: missing container in %q", ErrInvalidDestination, raw)
		}

		return Destination{
			Raw:        raw,
			Kind:       DestinationBlob,
			ServiceURL: fmt.Sprintf("https://%s/", u.Host),
			Container:  container,
			Prefix:     strings.Trim(prefix, "/"),
		}, nil
	default:
		return Destination{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidDestination, u.Scheme)
	}
}
