// Package eventb renders a pattern model as Event-B context and machine text.
//
// The rendering is a single pass over the model. Field order in the output
// mirrors the model; the only reordering is that the initial event is always
// emitted first, as INITIALISATION.
//
// Numbering:
//   - axioms    @ax01, @ax02, ...
//   - invariants @inv01, ...
//   - initial event actions @int01, ... (a lone "@int01 skip" when empty)
//   - guards    @g01, ... continuous across implicit parameter typing
//     guards and explicit guards
//   - actions   @a01, ...
package eventb
