// Package harness runs generation scenarios described in YAML files.
//
// A scenario names one or more refinement layers of pattern documents,
// runs them through the generation service, and checks the rendered
// Event-B text with assertions and, in tests, golden files.
//
// # Scenario Format
//
//	name: send_pipeline
//	description: "PSend refined by the buffer pattern"
//	project: SendPipeline
//	first_refinement: 0
//	layers:
//	  - [../patterns/PSend.xml]
//	  - [../patterns/PSend.xml, ../patterns/PNDBuffer.xml]
//	assertions:
//	  - type: event_present
//	    layer: 1
//	    event: start_tx
//	  - type: machine_contains
//	    layer: 1
//	    text: "@a02 ndBuff ≔ ndBuff ∖ {p}"
//
// Pattern paths are relative to the scenario file.
//
// A scenario that sets expect_error passes only when generation fails
// with that error kind (for example VARIABLE_TYPE_CONFLICT). Such a
// scenario must not carry assertions.
//
// # Assertion Types
//
//   - event_present: the layer's machine declares the event
//   - event_absent: the layer's machine does not declare the event
//   - machine_contains: the layer's machine text contains text
//   - context_contains: the layer's context text contains text
//   - artifact_count: exactly count refinements were produced
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/send_pipeline.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
