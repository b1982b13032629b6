// Command fsmdemo runs a small greeting FSM end-to-end against a scripted
// LLM client, the way the teacher's cmd/main.go stood up its
// FormalLanguageAI system — minus the web dashboard and ML training loops,
// which have no home in this engine's domain.
package main

import (
	"fmt"
	"time"

	"github.com/fla/fsmforge/pkg/action/subfsmaction"
	"github.com/fla/fsmforge/pkg/config"
	"github.com/fla/fsmforge/pkg/engine"
	"github.com/fla/fsmforge/pkg/fsm"
	"github.com/fla/fsmforge/pkg/llmclient"
	"github.com/fla/fsmforge/pkg/schema"
	"go.uber.org/zap"
)

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Default()

	def, err := buildGreetingFSM()
	if err != nil {
		fatal(log, "build greeting fsm", err)
	}

	clients := llmclient.NewRegistry()
	clients.Register("greeter", llmclient.NewMock().
		Script(`{"id": ["greet", "end"], "message": "hello there"}`, nil))

	schemas := schema.Compose(schema.Base(), def.Schemas)
	dynamic := schema.DynamicRegistry{}
	subDefs := subfsmaction.NewDefs()

	wiring := engine.Wiring{
		AfterBridgeInit: fsm.XitionID{From: fsm.Start, To: fsm.State("cache")},
		CacheSelfLoop:   fsm.XitionID{From: fsm.State("cache"), To: fsm.State("cache")},
		CacheDone:       fsm.XitionID{From: fsm.State("cache"), To: fsm.State("greet")},
		AfterSubFSM:     fsm.XitionID{From: fsm.State("greet"), To: fsm.End},
		LLMErrorEdges:   map[fsm.State]fsm.XitionID{},
	}
	actions := engine.Build(cfg, clients, schemas, dynamic, subDefs, wiring, log)

	stateConfigs := map[fsm.State]map[string]interface{}{
		"greet": {"client": "greeter", "max_retries": cfg.LLMMaxRetries},
	}

	eng, err := fsm.NewEngine(def, actions, schemas, dynamic, stateConfigs)
	if err != nil {
		fatal(log, "new engine", err)
	}

	sess := fsm.StartFSM("greeting-demo", eng, fsm.SessionConfig{
		InputQueueSize: cfg.SessionInputQueueSize,
		CancelGrace:    time.Duration(cfg.CancelGraceMS) * time.Millisecond,
	}, log)

	if err := sess.Submit(fsm.Event{"id": []interface{}{string(fsm.Start), "greet"}}); err != nil {
		fatal(log, "submit initial event", err)
	}

	outcome, err := sess.Await(30 * time.Second)
	if err != nil {
		fatal(log, "await", err)
	}

	fmt.Printf("run completed: cancelled=%v err=%v trail-length=%d\n", outcome.Cancelled, outcome.Err, len(outcome.Trail))
	for _, env := range outcome.Trail {
		fmt.Printf("  %s %s %v\n", env.SeqID, env.Xition, map[string]interface{}(env.Event))
	}
}

// buildGreetingFSM assembles a minimal two-transition FSM: start -> greet
// (the LLM action composes a prompt and the model replies with a message),
// greet -> end.
func buildGreetingFSM() (*fsm.FSMDef, error) {
	b := fsm.NewDefBuilder("greeting-demo").
		Describe("asks an LLM for a one-line greeting").
		Prompt("You are a terse greeter. Reply with structured data only.").
		State("greet", "llm")

	greetSchema := schema.Map(true,
		schema.Entry{Key: "id", Value: schema.Any()},
		schema.Entry{Key: "message", Value: schema.String()},
	)

	b = b.Xition(fsm.Start, "greet", schema.Any()).
		Xition("greet", fsm.End, greetSchema).WithLabel("greet", "produce the greeting")

	return b.Build()
}

func fatal(log *zap.Logger, msg string, err error) {
	log.Error(msg, zap.Error(err))
	panic(fmt.Sprintf("%s: %v", msg, err))
}
