package notifysvc

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/trezcool/somo/core"
)

// Subscriber is any event source handlers can subscribe to.
type Subscriber interface {
	Subscribe(typ string, handler core.EventHandler)
}

// Notifier emails learners about their course milestones.
type Notifier struct {
	mail   core.EmailService
	logger core.Logger
}

func NewNotifier(mailSvc core.EmailService, logger core.Logger) *Notifier {
	return &Notifier{mail: mailSvc, logger: logger}
}

// Register subscribes the notifier to the events it handles.
func (n *Notifier) Register(sub Subscriber) {
	sub.Subscribe(core.EventModuleFinished, n.ModuleFinished)
}

// ModuleFinished sends the completion notice. Learners without an email address are skipped.
func (n *Notifier) ModuleFinished(_ context.Context, evt core.Event) {
	if evt.Email == "" {
		return
	}
	moduleID, _ := evt.Payload["module_id"].(string)
	moduleName, _ := evt.Payload["module_name"].(string)
	if moduleID == "" {
		n.logger.Warn(fmt.Sprintf("%s event without module_id", evt.Type), map[string]interface{}{"learner_id": evt.LearnerID})
		return
	}
	if moduleName == "" {
		moduleName = moduleID
	}
	name := evt.Name
	if name == "" {
		name = evt.Email
	}

	n.mail.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: evt.Name, Address: evt.Email}},
		Subject:      "You completed " + moduleName,
		TemplateName: "module_finished",
		TemplateData: map[string]interface{}{
			"Name":       name,
			"ModuleID":   moduleID,
			"ModuleName": moduleName,
		},
	})
}
