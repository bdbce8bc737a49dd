package api

import (
	"net"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// ScheduleStatus is the body of GET /schedule and POST /schedule/skip.
type ScheduleStatus struct {
	Schedule string `json:"schedule"`
	Running  bool   `json:"running"`
	NextRun  string `json:"nextRun,omitempty"`
}

// ParseListen splits a listen address into network and address:
// "unix:///run/pcran.sock" is a unix socket, anything else is TCP.
func ParseListen(listen string) (network, address string, err error) {
	if rest, ok := strings.CutPrefix(listen, "unix://"); ok {
		if rest == "" {
			return "", "", pkgerrors.Errorf("empty unix socket path in %q", listen)
		}
		return "unix", rest, nil
	}
	if _, _, err := net.SplitHostPort(listen); err != nil {
		return "", "", pkgerrors.Wrapf(err, "invalid listen address %q", listen)
	}
	return "tcp", listen, nil
}
