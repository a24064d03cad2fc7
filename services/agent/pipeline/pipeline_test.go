package pipeline

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/scholar/pkg/records"
	"github.com/AleutianAI/scholar/services/agent/cache"
	"github.com/AleutianAI/scholar/services/agent/datastore"
	"github.com/AleutianAI/scholar/services/agent/datatypes"
	"github.com/AleutianAI/scholar/services/agent/intent"
	"github.com/AleutianAI/scholar/services/agent/observability"
	"github.com/AleutianAI/scholar/services/recordstore"
)

const studentOne = "689cef602490264c7f2dd235"

// recordService starts a record service over the given students.
func recordService(t *testing.T, students []*records.Record) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := recordstore.NewMemoryStore()
	require.NoError(t, recordstore.SeedStore(context.Background(), store, students))
	srv := httptest.NewServer(recordstore.New(recordstore.Config{GinMode: gin.TestMode}, store, nil, nil).Router())
	t.Cleanup(srv.Close)
	return srv.URL
}

func newPipeline(obs *observability.Observer) *Pipeline {
	fetcher := datastore.NewCachedFetcher(
		datastore.NewClient(nil),
		cache.New[*records.Record](time.Minute, 100),
		obs,
		datastore.FetcherConfig{Timeout: 5 * time.Second},
	)
	return New(intent.NewHeuristicClassifier(), fetcher, obs)
}

// =============================================================================
// End to end
// =============================================================================

func TestHandleRequest_StudentSummary(t *testing.T) {
	url := recordService(t, recordstore.DemoStudents())
	obs, _ := observability.NewTestObserver()
	p := newPipeline(obs)

	state := p.HandleRequest(context.Background(), "Can you summarize the performance for student 689cef602490264c7f2dd235?", url)

	require.NoError(t, state.Err)
	assert.Equal(t, datatypes.QuerySingleStudent, state.QueryType)
	assert.Equal(t, studentOne, state.Request.StudentID)
	assert.Contains(t, state.FinalResponse, "Average: 8.7")
	assert.Contains(t, state.FinalResponse, "+4")
	assert.Contains(t, state.FinalResponse, "okay")
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.Metrics.RequestsTotal.WithLabelValues("single_student")))
	assert.Equal(t, 0.0, testutil.ToFloat64(obs.Metrics.ActiveRequests))
}

func TestHandleRequest_SecondAskHitsCache(t *testing.T) {
	url := recordService(t, recordstore.DemoStudents())
	obs, _ := observability.NewTestObserver()
	p := newPipeline(obs)

	first := p.HandleRequest(context.Background(), "trend for student 689cef602490264c7f2dd235", url)
	second := p.HandleRequest(context.Background(), "trend for student 689cef602490264c7f2dd235", url)

	assert.False(t, first.Fetched.CacheHit)
	assert.True(t, second.Fetched.CacheHit)
	assert.Equal(t, first.FinalResponse, second.FinalResponse)
	assert.Contains(t, second.FinalResponse, "improving")
}

func TestHandleRequest_MissingStudentID(t *testing.T) {
	obs, _ := observability.NewTestObserver()
	p := newPipeline(obs)

	state := p.HandleRequest(context.Background(), "summarize the student", "http://127.0.0.1:1")

	var verr *ValidationError
	require.ErrorAs(t, state.Err, &verr)
	assert.Equal(t, ReasonMissingID, verr.Reason)
	assert.Equal(t, observability.NodeValidation, state.FailedNode)
	assert.Equal(t, "Error: missing student_id for this query type", state.FinalResponse)
	assert.Equal(t, 1, state.AttemptCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.Metrics.FailuresTotal.WithLabelValues("validation", ReasonMissingID)))
}

func TestHandleRequest_ClassSummary(t *testing.T) {
	url := recordService(t, recordstore.DemoStudents()[:3])
	obs, _ := observability.NewTestObserver()
	p := newPipeline(obs)

	state := p.HandleRequest(context.Background(), "Show me the class ranking", url)

	require.NoError(t, state.Err)
	assert.Equal(t, datatypes.QueryClassSummary, state.QueryType)
	assert.Contains(t, state.FinalResponse, "1. Student 2 (689cef602490264c7f2dd260): 20")
	assert.Contains(t, state.FinalResponse, "No at-risk students detected.")
	assert.Contains(t, state.FinalResponse, "Average final grade: 16.3")
	assert.Contains(t, state.FinalResponse, "At-risk students: 0 (0.0%)")
}

func TestHandleRequest_ClassRankingHugePaging(t *testing.T) {
	url := recordService(t, recordstore.DemoStudents()[:3])
	obs, _ := observability.NewTestObserver()
	p := newPipeline(obs)

	for _, q := range []string{
		"class ranking page 1000000000000000000",
		"class ranking top 9223372036854775807 page 2",
	} {
		state := p.HandleRequest(context.Background(), q, url)
		require.NoError(t, state.Err, q)
		assert.Contains(t, state.FinalResponse, "(showing 0)", q)
		assert.NotContains(t, state.FinalResponse, "runtime error", q)
	}
}

func TestHandleRequest_UnknownStudent(t *testing.T) {
	url := recordService(t, recordstore.DemoStudents())
	obs, _ := observability.NewTestObserver()
	p := newPipeline(obs)

	state := p.HandleRequest(context.Background(), "risk check for student 000000000000000000000001", url)

	require.NoError(t, state.Err)
	assert.Equal(t, "Student not found.", state.FinalResponse)
}

func TestHandle_ExplicitFieldsRenderRecord(t *testing.T) {
	url := recordService(t, recordstore.DemoStudents())
	obs, _ := observability.NewTestObserver()
	p := newPipeline(obs)

	state := p.Handle(context.Background(), Query{
		Raw:    "show student 689cef602490264c7f2dd235",
		Fields: []string{"name", "G3", "name"},
	}, url)

	require.NoError(t, state.Err)
	assert.Equal(t, "Student data: name: Student 1; G3: 10", state.FinalResponse)
	assert.Equal(t, []string{"name", "G3"}, state.Request.Fields)
}

func TestHandle_InvalidField(t *testing.T) {
	obs, _ := observability.NewTestObserver()
	p := newPipeline(obs)

	state := p.Handle(context.Background(), Query{
		Raw:    "show student 689cef602490264c7f2dd235",
		Fields: []string{"name", "password"},
	}, "http://127.0.0.1:1")

	assert.Equal(t, "Error: invalid fields requested: [password]", state.FinalResponse)
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.Metrics.FailuresTotal.WithLabelValues("validation", ReasonFieldsWhitelist)))
}

func TestHandleRequest_RecordServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	obs, _ := observability.NewTestObserver()
	p := newPipeline(obs)

	state := p.HandleRequest(context.Background(), "summarize student 689cef602490264c7f2dd235", srv.URL)

	var ferr *datastore.FetchError
	require.ErrorAs(t, state.Err, &ferr)
	assert.Equal(t, observability.NodeFetch, state.FailedNode)
	assert.Equal(t, "Error: record service error: 503 down for maintenance", state.FinalResponse)
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.Metrics.FailuresTotal.WithLabelValues("mcp_call", "mcp_error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(obs.Metrics.FailuresTotal.WithLabelValues("error", "mcp_error")))
}

func TestHandleRequest_Spans(t *testing.T) {
	url := recordService(t, recordstore.DemoStudents())
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	obs := observability.NewObserver(observability.NewMetrics(prometheus.NewRegistry()), tp, nil)
	p := newPipeline(obs)

	state := p.HandleRequest(context.Background(), "summarize student 689cef602490264c7f2dd235", url)
	require.NoError(t, state.Err)
	assert.Len(t, state.TraceID, 32)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	for _, want := range []string{"agent.request", "agent.intent", "agent.validation", "agent.fetch", "agent.analysis", "agent.response"} {
		assert.Contains(t, names, want)
	}
	assert.NotContains(t, names, "agent.error")
}

// =============================================================================
// Nodes
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		state      State
		wantReason string
		wantFields []string
	}{
		{
			name:       "missing id",
			state:      State{QueryType: datatypes.QueryTrend},
			wantReason: ReasonMissingID,
		},
		{
			name:       "bad id",
			state:      State{QueryType: datatypes.QueryDerivedMetrics, Request: datatypes.Request{StudentID: "12345"}},
			wantReason: ReasonStudentIDFormat,
		},
		{
			name:  "class ignores fields",
			state: State{QueryType: datatypes.QueryClassSummary, Request: datatypes.Request{Fields: []string{"password"}}},
		},
		{
			name: "field outside allow-list",
			state: State{QueryType: datatypes.QuerySingleStudent, Request: datatypes.Request{
				StudentID: studentOne, Fields: []string{"G1"},
			}},
			wantReason: ReasonFieldsWhitelist,
		},
		{
			name: "dedupes fields",
			state: State{QueryType: datatypes.QuerySingleStudent, Request: datatypes.Request{
				StudentID: studentOne, Fields: []string{"G3", "name", "G3"},
			}},
			wantFields: []string{"G3", "name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, _ := observability.NewTestObserver()
			state := tt.state
			err := Validate(&state, obs.Metrics)

			if tt.wantReason == "" {
				require.NoError(t, err)
				if tt.wantFields != nil {
					assert.Equal(t, tt.wantFields, state.Request.Fields)
				}
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantReason, verr.Reason)
			assert.Equal(t, 1.0, testutil.ToFloat64(obs.Metrics.FailuresTotal.WithLabelValues("validation", tt.wantReason)))
		})
	}
}

func TestRouteFor(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  Route
	}{
		{name: "error wins", state: State{Err: errors.New("x"), NeedsAnalysis: true, NeedsDB: true}, want: RouteError},
		{name: "analysis", state: State{NeedsAnalysis: true, NeedsDB: true}, want: RouteAnalysis},
		{name: "fetch", state: State{NeedsDB: true}, want: RouteFetch},
		{name: "respond", state: State{}, want: RouteRespond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RouteFor(&tt.state))
		})
	}
}

func TestSynthesize(t *testing.T) {
	rec := records.FromPairs(
		records.Field{Name: "name", Value: "Alice"},
		records.Field{Name: "age", Value: 17},
		records.Field{Name: "G3", Value: 13},
	)

	tests := []struct {
		name  string
		state State
		want  string
	}{
		{name: "analysis verbatim", state: State{AnalysisResult: "done"}, want: "done"},
		{name: "prompt for id", state: State{}, want: promptForID},
		{name: "not found", state: State{Request: datatypes.Request{StudentID: studentOne}}, want: recordNotFound},
		{
			name:  "whole record",
			state: State{Fetched: datastore.Fetched{Student: rec}},
			want:  "Student data: name: Alice; age: 17; G3: 13",
		},
		{
			name:  "projected",
			state: State{Request: datatypes.Request{Fields: []string{"G3", "name"}}, Fetched: datastore.Fetched{Student: rec}},
			want:  "Student data: G3: 13; name: Alice",
		},
		{
			name: "listing is not analyzed here",
			state: State{
				Options: datatypes.AnalysisOptions{Page: math.MaxInt},
				Fetched: datastore.Fetched{Listing: true, Students: []*records.Record{rec}},
			},
			want: promptForID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Synthesize(&tt.state))
		})
	}
}

func TestAnalyze_RecoversPanic(t *testing.T) {
	// The zero Record is documented as unusable; reading it panics.
	state := &State{
		QueryType: datatypes.QuerySingleStudent,
		Request:   datatypes.Request{StudentID: studentOne},
		Fetched:   datastore.Fetched{Student: new(records.Record)},
	}

	err := Analyze(state)

	var aerr *AnalysisError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, datatypes.QuerySingleStudent, aerr.QueryType)
	assert.Contains(t, err.Error(), "analysis failed:")
}

func TestAnalyze_StudentNotFound(t *testing.T) {
	state := &State{QueryType: datatypes.QueryTrend, Request: datatypes.Request{StudentID: studentOne}}
	require.NoError(t, Analyze(state))
	assert.Equal(t, "Student not found.", state.AnalysisResult)
}

func TestHandleError_HardStop(t *testing.T) {
	obs, _ := observability.NewTestObserver()
	cause := &datastore.FetchError{StatusCode: 500, Body: "boom"}
	state := &State{Err: cause, FailedNode: observability.NodeFetch}

	HandleError(state, obs.Metrics)
	assert.Equal(t, "Error: record service error: 500 boom", state.FinalResponse)
	assert.False(t, state.HardStop)

	HandleError(state, obs.Metrics)
	assert.False(t, state.HardStop)

	HandleError(state, obs.Metrics)
	assert.True(t, state.HardStop)
	assert.Equal(t, 3, state.AttemptCount)
	assert.Equal(t, hardStopResponse, state.FinalResponse)
	assert.ErrorIs(t, state.Err, ErrMaxAttempts)
	assert.ErrorIs(t, state.Err, cause)
	assert.Equal(t, 3.0, testutil.ToFloat64(obs.Metrics.FailuresTotal.WithLabelValues("mcp_call", "mcp_error")))
}

func TestHandleError_NilError(t *testing.T) {
	obs, _ := observability.NewTestObserver()
	state := &State{}
	HandleError(state, obs.Metrics)
	assert.Equal(t, "Error: unknown", state.FinalResponse)

	state.AttemptCount = MaxAttempts
	HandleError(state, obs.Metrics)
	assert.True(t, state.HardStop)
	assert.Equal(t, ErrMaxAttempts, state.Err)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, ReasonMissingID, failureReason(&ValidationError{Reason: ReasonMissingID}))
	assert.Equal(t, "analysis", failureReason(&AnalysisError{Err: errors.New("x")}))
	assert.Equal(t, "timeout", failureReason(&datastore.TransportError{Op: "query", Err: context.DeadlineExceeded}))
	assert.Equal(t, "mcp_error", failureReason(&datastore.FetchError{StatusCode: 502}))
	assert.Equal(t, "unknown", failureReason(errors.New("other")))
}
