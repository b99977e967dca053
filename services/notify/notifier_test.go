package notifysvc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/services/email"
	"github.com/trezcool/somo/services/events"
	"github.com/trezcool/somo/services/notify"
	"github.com/trezcool/somo/tests"
)

func TestNotifier_ModuleFinished(t *testing.T) {
	conf := &core.Config{AppName: "Somo", FrontendBaseURL: "http://somo.test"}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	logger := new(testutil.Logger)
	hub := eventsvc.NewLocalHub(logger)
	notifysvc.NewNotifier(mailSvc, logger).Register(hub)
	ctx := context.Background()

	tests := []struct {
		name     string
		evt      core.Event
		wantSent bool
	}{
		{
			name:     "learner with email",
			evt:      core.NewEvent(core.EventModuleFinished, core.Learner{ID: "l1", Name: "Ada", Email: "ada@somo.test"}, map[string]interface{}{"module_id": "algebra", "module_name": "Algebra"}),
			wantSent: true,
		},
		{
			name: "learner without email",
			evt:  core.NewEvent(core.EventModuleFinished, core.Learner{ID: "l2"}, map[string]interface{}{"module_id": "algebra", "module_name": "Algebra"}),
		},
		{
			name: "other event",
			evt:  core.NewEvent(core.EventStepCompleted, core.Learner{ID: "l1", Email: "ada@somo.test"}, map[string]interface{}{"module_id": "algebra"}),
		},
		{
			name: "missing module",
			evt:  core.NewEvent(core.EventModuleFinished, core.Learner{ID: "l1", Email: "ada@somo.test"}, nil),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailSvc.Reset()
			require.NoError(t, hub.Publish(ctx, tt.evt))

			sent := mailSvc.Sent()
			if !tt.wantSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			assert.Equal(t, "ada@somo.test", sent[0].To[0].Address)
			assert.Equal(t, "You completed Algebra", sent[0].Subject)
			assert.Contains(t, sent[0].TextContent, "Hi Ada,")
			assert.Contains(t, sent[0].TextContent, "http://somo.test/modules/algebra")
		})
	}
}
