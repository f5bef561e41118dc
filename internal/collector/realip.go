package collector

import (
	"net/http"
	"strings"

	"github.com/realclientip/realclientip-go"
)

type RealIPExtractor struct {
	strategy realclientip.RightmostTrustedRangeStrategy
}

// NewRealIPExtractor creates a new RealIPExtractor with the given trusted ranges.
func NewRealIPExtractor(trustedRanges []string) (*RealIPExtractor, error) {
	ipNets, err := realclientip.AddressesAndRangesToIPNets(trustedRanges...)
	if err != nil {
		return nil, err
	}

	strategy, err := realclientip.NewRightmostTrustedRangeStrategy("X-Forwarded-For", ipNets)
	if err != nil {
		return nil, err
	}

	return &RealIPExtractor{
		strategy: strategy,
	}, nil
}

var remoteAddrStrategy = realclientip.RemoteAddrStrategy{}

func (e *RealIPExtractor) Extract(request *http.Request) string {
	headers := request.Header.Clone()

	newXForwardedFor := []string{}
	oldXForwardedFor := headers.Get("X-Forwarded-For")

	if oldXForwardedFor != "" {
		newXForwardedFor = append(newXForwardedFor, oldXForwardedFor)
	}

	remoteAddr := remoteAddrStrategy.ClientIP(nil, request.RemoteAddr)
	if remoteAddr == "" || len(newXForwardedFor) == 0 {
		return remoteAddr
	}

	newXForwardedFor = append(newXForwardedFor, remoteAddr)
	headers.Set("X-Forwarded-For", strings.Join(newXForwardedFor, ", "))

	// RightmostTrustedRangeStrategy ignores the second parameter
	rightmostTrusted := e.strategy.ClientIP(headers, "")
	if rightmostTrusted == "" {
		return remoteAddr
	}
	return rightmostTrusted
}
