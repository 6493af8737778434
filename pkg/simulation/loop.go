package simulation

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/glsp-mcp/forge/pkg/pipeline"
	"github.com/glsp-mcp/forge/pkg/sensorbridge"
)

// pendingPipeline tracks one in-flight Pipeline Engine submission this
// simulation is waiting on.
type pendingPipeline struct {
	scenarioID  string
	pipelineID  string
	executionID string
}

// run drives cfg's per-frame loop to completion, per spec.md §4.F's
// six-step loop. It never panics outward: any internal error becomes
// a Failed terminal state.
func (e *Engine) run(ctx context.Context, run *simRun) {
	defer close(run.done)
	run.setState(StateRunning)

	cfg := run.exec.Config

	var bridge *sensorbridge.Bridge
	if len(cfg.SensorIDs) > 0 {
		bridge = sensorbridge.New(e.store, sensorbridge.Config{SensorIDs: cfg.SensorIDs, StepUS: cfg.SensorStepUS})
		bridge.Start()
		defer bridge.Stop()
	}

	registeredAt := time.Now()
	var pending []pendingPipeline
	completedResults := make(map[string]pipeline.Execution) // "scenarioID/pipelineID" -> latest terminal result

	interval := frameInterval(cfg.Clock)
	perTick := batchSize(cfg.Clock)

	var frameSamples int
	var frameRateSum float64
	lastSampleAt := time.Now()

	var frameIndex int64
	for {
		if ctx.Err() != nil {
			run.finish(StateCancelled, ctx.Err().Error())
			return
		}

		if run.state() == StatePaused {
			select {
			case <-ctx.Done():
				run.finish(StateCancelled, ctx.Err().Error())
				return
			case <-time.After(e.pausePoll):
			}
			continue
		}

		if cfg.Clock.Mode == ClockStepByStep {
			select {
			case <-ctx.Done():
				run.finish(StateCancelled, ctx.Err().Error())
				return
			case <-run.stepCh:
			}
		}

		ticksThisIteration := perTick
		if cfg.Clock.Mode != ClockBatch {
			ticksThisIteration = 1
		}

		allScenariosTerminal := len(cfg.Scenarios) > 0

		for i := 0; i < ticksThisIteration; i++ {
			frameIndex++

			var fc frameContext
			fc.frameIndex = frameIndex

			if bridge != nil {
				hasMore, err := bridge.AdvanceFrame(ctx)
				if err != nil {
					run.finish(StateFailed, err.Error())
					return
				}
				if !hasMore {
					run.finish(StateCompleted, "")
					e.drainStats(run, pending)
					return
				}
				frame, err := bridge.CurrentFrame(ctx)
				if err != nil {
					run.finish(StateFailed, err.Error())
					return
				}
				fc.simTimeUS = frame.SimulationTimeUS
				fc.latestReadings = frame.Readings
			} else {
				fc.simTimeUS = frameIndex * cfg.SensorStepUS
			}
			fc.elapsedSinceSim = time.Since(registeredAt)

			pending, completedResults = e.pollPending(run, pending, completedResults)
			fc.completedPipelines = make(map[string]bool, len(completedResults))
			for key, res := range completedResults {
				// key is "scenarioID/pipelineID"; PipelineCompletion
				// triggers name only the pipeline_id, so index both the
				// scoped and bare forms.
				fc.completedPipelines[key] = res.State == pipeline.StateCompleted
				if _, pipelineID, ok := strings.Cut(key, "/"); ok {
					fc.completedPipelines[pipelineID] = res.State == pipeline.StateCompleted
				}
			}

			for _, sc := range cfg.Scenarios {
				se := run.scenario(sc.ScenarioID)
				if se.State == ScenarioCompleted || se.State == ScenarioFailed || se.State == ScenarioCancelled {
					continue
				}
				allScenariosTerminal = false

				if se.State == ScenarioWaiting {
					if !anyEnabledSatisfied(sc.Triggers, fc, registeredAt, time.Now()) {
						run.setScenario(se)
						continue
					}
					se.State = ScenarioRunning
					se.StartedAt = time.Now()
				}

				for _, p := range sc.Pipelines {
					var pcfg pipeline.Config
					if err := json.Unmarshal(p.Config, &pcfg); err != nil {
						se.Error = err.Error()
						continue
					}
					execID, err := e.pipelines.Execute(ctx, pcfg)
					if err != nil {
						se.Error = err.Error()
						continue
					}
					se.PipelineExecutions[p.PipelineID] = execID
					pending = append(pending, pendingPipeline{scenarioID: sc.ScenarioID, pipelineID: p.PipelineID, executionID: execID})
				}

				run.setScenario(se)

				e.evaluateConditions(ctx, run, sc, se)
			}

			usage := sampleResourceUsage()
			run.addAlerts(checkBudget("", cfg.Limits, usage, frameIndex, time.Now()))
			for _, sc := range cfg.Scenarios {
				run.addAlerts(checkBudget(sc.ScenarioID, sc.Limits, usage, frameIndex, time.Now()))
			}

			applyDataSharingRules(run, cfg.SharingRules, completedResults)
		}

		run.mu.Lock()
		run.exec.Stats.FramesProcessed += int64(ticksThisIteration)
		run.mu.Unlock()

		if time.Since(lastSampleAt) >= time.Second || frameSamples == 0 {
			elapsed := time.Since(lastSampleAt).Seconds()
			if elapsed > 0 {
				frameSamples++
				frameRateSum += float64(ticksThisIteration) / elapsed
				run.mu.Lock()
				run.exec.Stats.AvgFrameRate = frameRateSum / float64(frameSamples)
				run.mu.Unlock()
			}
			lastSampleAt = time.Now()
		}

		if allScenariosTerminal {
			run.finish(StateCompleted, "")
			e.drainStats(run, pending)
			return
		}

		if interval > 0 {
			select {
			case <-ctx.Done():
				run.finish(StateCancelled, ctx.Err().Error())
				return
			case <-time.After(interval):
			}
		}
	}
}

// pollPending checks every in-flight pipeline submission's status and
// folds newly-terminal ones into completedResults, returning the
// still-pending subset.
func (e *Engine) pollPending(run *simRun, pending []pendingPipeline, completed map[string]pipeline.Execution) ([]pendingPipeline, map[string]pipeline.Execution) {
	var stillPending []pendingPipeline
	for _, p := range pending {
		exec, ok := e.pipelines.Status(p.executionID)
		if !ok || !exec.State.Terminal() {
			stillPending = append(stillPending, p)
			continue
		}

		key := p.scenarioID + "/" + p.pipelineID
		completed[key] = exec

		run.mu.Lock()
		run.exec.Stats.PipelinesExecuted++
		if exec.State != pipeline.StateCompleted {
			run.exec.Stats.PipelinesFailed++
		}
		se := run.exec.ScenarioExecutions[p.scenarioID]
		se.PipelinesExecuted++
		if exec.State != pipeline.StateCompleted {
			se.PipelinesFailed++
		}
		run.exec.ScenarioExecutions[p.scenarioID] = se
		run.mu.Unlock()
	}
	return stillPending, completed
}

// drainStats gives already-submitted pipelines one last chance to
// report before the simulation's terminal state is finalized.
func (e *Engine) drainStats(run *simRun, pending []pendingPipeline) {
	completed := make(map[string]pipeline.Execution)
	e.pollPending(run, pending, completed)
}

// evaluateConditions applies sc's success/failure conditions to its
// current ScenarioExecution, taking the configured Action when a
// condition matches, per spec.md §4.F step 5.
func (e *Engine) evaluateConditions(ctx context.Context, run *simRun, sc Scenario, se ScenarioExecution) {
	results := make(map[string]bool, len(se.PipelineExecutions))
	for pipelineID := range se.PipelineExecutions {
		if res, ok := e.pipelines.Status(se.PipelineExecutions[pipelineID]); ok {
			results[pipelineID] = res.State == pipeline.StateCompleted
		}
	}

	elapsed := time.Since(se.StartedAt)
	usage := sampleResourceUsage()

	for _, cond := range sc.Conditions {
		if !cond.evaluate(results, elapsed, usage) {
			continue
		}

		switch cond.Action {
		case ActionStop:
			if cond.Type == ConditionFailure {
				se.State = ScenarioFailed
				se.Error = cond.Message
			} else {
				se.State = ScenarioCompleted
			}
			se.CompletedAt = time.Now()
		case ActionRestart:
			se.State = ScenarioWaiting
			se.PipelineExecutions = make(map[string]string)
		case ActionLog:
			e.logger.Info("simulation: scenario condition", "scenario_id", sc.ScenarioID, "message", cond.Message)
		case ActionNotify:
			e.logger.Info("simulation: scenario notify", "scenario_id", sc.ScenarioID, "target", cond.NotifyTarget, "message", cond.Message)
			if e.notifier != nil {
				e.notifier.Notify(ctx, cond.NotifyTarget, cond.Message)
			}
		case ActionCustom:
			e.logger.Warn("simulation: unhandled custom scenario action", "scenario_id", sc.ScenarioID, "action", cond.CustomAction)
		case ActionContinue:
		}
	}

	run.setScenario(se)
}

// applyDataSharingRules copies one pipeline stage's result into
// shared_data per rule, per spec.md §4.F step 4.
func applyDataSharingRules(run *simRun, rules []DataSharingRule, completed map[string]pipeline.Execution) {
	for _, rule := range rules {
		key := rule.SourceScenarioID + "/" + rule.SourcePipelineID
		exec, ok := completed[key]
		if !ok {
			continue
		}
		stageResult, ok := exec.StageResults[rule.SourceStageID]
		if !ok || !stageResult.Success {
			continue
		}

		value := stageResult.Value
		if rule.SourceField != "" && rule.SourceField != "*" {
			extracted, err := extractField(value, rule.SourceField)
			if err != nil {
				continue
			}
			value = extracted
		}

		run.setShared(rule.TargetKey, value)
	}
}

// extractField walks a dotted path into a JSON value, mirroring
// pipeline.extractPath's semantics for data-sharing rules that pull
// one field out of a stage result rather than sharing it whole.
func extractField(value json.RawMessage, path string) (json.RawMessage, error) {
	var current any
	if err := json.Unmarshal(value, &current); err != nil {
		return nil, err
	}

	for _, seg := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return json.RawMessage("null"), nil
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return json.RawMessage("null"), nil
			}
			current = node[idx]
		default:
			return json.RawMessage("null"), nil
		}
	}

	return json.Marshal(current)
}

func sampleResourceUsage() ResourceUsage {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return ResourceUsage{
		MemoryMB:    float64(mem.Alloc) / (1024 * 1024),
		ThreadCount: runtime.NumGoroutine(),
	}
}
