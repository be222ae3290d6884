package accesscontrol

import (
	"context"

	"github.com/trekjournal/media-proxy/internal/journeys"
	"github.com/trekjournal/media-proxy/pkg/enums"
	"github.com/trekjournal/media-proxy/pkg/logger"
)

// journeyReader is the slice of the journeys repository the checker consults.
type journeyReader interface {
	GetJourney(ctx context.Context, journeyID string) (*journeys.Journey, error)
	GetMembership(ctx context.Context, journeyID, userID string) (*journeys.Membership, error)
}

// Checker answers whether a caller may act on a journey at a required role
// level. Lookup failures against the store deny access rather than propagate.
type Checker struct {
	repo journeyReader
	logg *logger.Logger
}

// NewChecker builds a checker over the journeys repository.
func NewChecker(repo journeyReader, logg *logger.Logger) *Checker {
	return &Checker{repo: repo, logg: logg}
}

// HasAccess reports whether callerID (empty for anonymous callers) holds at
// least the required role on the journey. Public journeys grant viewer access
// without any membership lookup.
func (c *Checker) HasAccess(ctx context.Context, journeyID, callerID string, required enums.MemberRole) bool {
	if required == enums.MemberRoleViewer {
		journey, err := c.repo.GetJourney(ctx, journeyID)
		if err != nil {
			c.logg.Warn(c.logg.WithJourneyID(ctx, journeyID), "access check: journey lookup failed, denying")
			return false
		}
		if journey.IsPublic {
			return true
		}
	}

	if callerID == "" {
		return false
	}

	membership, err := c.repo.GetMembership(ctx, journeyID, callerID)
	if err != nil {
		c.logg.Warn(c.logg.WithJourneyID(ctx, journeyID), "access check: membership lookup failed, denying")
		return false
	}
	if membership == nil {
		return false
	}
	return membership.Role.Satisfies(required)
}
