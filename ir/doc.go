// Package ir defines the intermediate representation used by the ABI lowering passes.
//
// The IR is deliberately small. It carries exactly what the resource and calling
// convention passes need to see:
//   - Abstract resource operations produced by a frontend: descriptor loads,
//     push-constant loads, built-in reads and writes, generic input loads and
//     output stores, buffer loads and stores.
//   - Concrete operations produced by lowering: argument reads, scalar constant
//     loads through 64-bit pointers, raw buffer operations, LDS traffic, exports,
//     wave-level reductions and hardware messages.
//
// # Structure
//
// A Module holds Functions and EntryPoints. Each Function owns an expression
// arena addressed by ExpressionHandle and a structured statement Body. Expressions
// are pure and are evaluated where they are first referenced; statements carry all
// side effects and control flow.
//
// Lowering passes rewrite expressions in place: the abstract expression at a handle
// is replaced by its concrete equivalent, so every existing reference to the handle
// observes the lowered value without a use-list walk.
package ir
