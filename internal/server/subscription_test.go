package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/lingohub/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscriptionService records transition calls. Methods it does not
// override panic through the nil embedded interface.
type fakeSubscriptionService struct {
	subscriptiondomain.Service
	calls   []string
	holders []tierdomain.Audience
}

func (f *fakeSubscriptionService) record(name string, holder tierdomain.Audience, id string) (*subscriptiondomain.Subscription, error) {
	f.calls = append(f.calls, name)
	f.holders = append(f.holders, holder)
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return nil, subscriptiondomain.ErrInvalidSubscriptionID
	}
	return &subscriptiondomain.Subscription{ID: parsed, Holder: holder, Status: subscriptiondomain.SubscriptionStatusCancelled}, nil
}

func (f *fakeSubscriptionService) Cancel(ctx context.Context, holder tierdomain.Audience, id string) (*subscriptiondomain.Subscription, error) {
	return f.record("cancel", holder, id)
}

func (f *fakeSubscriptionService) Get(ctx context.Context, holder tierdomain.Audience, id string) (*subscriptiondomain.Subscription, error) {
	return f.record("get", holder, id)
}

func TestSubscriptionTransitionRoutesDispatchAfterHolderCheck(t *testing.T) {
	subs := &fakeSubscriptionService{}
	router := newTestRouter(t, &Server{subscriptionSvc: subs})

	resp := doRequest(router, http.MethodPost, "/api/subscriptions/tutor/7/cancel", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, subs.calls)

	resp = doRequest(router, http.MethodPost, "/api/subscriptions/institution/7/cancel", "", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	resp = doRequest(router, http.MethodGet, "/api/subscriptions/student/7", "", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	assert.Equal(t, []string{"cancel", "get"}, subs.calls)
	assert.Equal(t, []tierdomain.Audience{tierdomain.AudienceInstitution, tierdomain.AudienceStudent}, subs.holders)
}
