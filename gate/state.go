package gate

// State tags where a gated action currently sits on its way from being
// priced to having its effect applied.
type State = string

const StatePriced State = "priced"
const StatePendingProof State = "pending_proof"
const StateSettled State = "settled"
const StateRejected State = "rejected"
const StateGranted State = "granted"
