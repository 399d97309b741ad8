package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadops-cli/internal/resilience"
	"github.com/sells-group/leadops-cli/pkg/salesforce"
)

type sfStub struct {
	calls int
	errs  []error
}

func (s *sfStub) Query(_ context.Context, _ string, out any) error {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return err
		}
	}
	*out.(*[]salesforce.Deal) = []salesforce.Deal{
		{ID: "00Q1", DealID: "101", Email: "a@x.ru", TrackingURL: "https://ai.example.com/gpt?rs=vk_1", UTMSource: "vk"},
	}
	return nil
}

func fastRetry() resilience.RetryPolicy {
	return resilience.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestSalesforceCRM_LeadsByIDs(t *testing.T) {
	stub := &sfStub{}
	crm := NewSalesforceCRM(stub, fastRetry())

	got, err := crm.LeadsByIDs(context.Background(), []string{"101"})
	require.NoError(t, err)
	assert.Equal(t, map[string]CRMLead{
		"101": {ID: "101", Email: "a@x.ru", URL: "https://ai.example.com/gpt?rs=vk_1", UTMSource: "vk"},
	}, got)
}

func TestSalesforceCRM_RetriesTransient(t *testing.T) {
	stub := &sfStub{errs: []error{resilience.NewTransientError(errors.New("503"), 503)}}
	crm := NewSalesforceCRM(stub, fastRetry())

	got, err := crm.LeadsByIDs(context.Background(), []string{"101"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, stub.calls)
}

func TestSalesforceCRM_PermanentError(t *testing.T) {
	stub := &sfStub{errs: []error{errors.New("INVALID_FIELD")}}
	crm := NewSalesforceCRM(stub, fastRetry())

	_, err := crm.LeadsByIDs(context.Background(), []string{"101"})
	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}
