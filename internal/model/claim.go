package model

// ClaimStatus is a state of the claim workflow.
type ClaimStatus string

const (
	ClaimActive            ClaimStatus = "active"
	ClaimPending           ClaimStatus = "pending" // legacy alias of active
	ClaimIdentityRequested ClaimStatus = "identity_requested"
	ClaimIdentitySubmitted ClaimStatus = "identity_submitted"
	ClaimHandoverInitiated ClaimStatus = "handover_initiated"
	ClaimReturned          ClaimStatus = "returned"
	ClaimRejected          ClaimStatus = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimReturned || s == ClaimRejected
}

// OpenClaimStatuses lists every non-terminal status.
var OpenClaimStatuses = []ClaimStatus{
	ClaimActive,
	ClaimPending,
	ClaimIdentityRequested,
	ClaimIdentitySubmitted,
	ClaimHandoverInitiated,
}

// Party is a participant role on a claim.
type Party string

const (
	PartyFinder  Party = "finder"
	PartyClaimer Party = "claimer"
)

// PartyOf returns the role userID plays on the claim.
func (c *Claim) PartyOf(userID int64) (Party, bool) {
	switch userID {
	case c.FinderID:
		return PartyFinder, true
	case c.ClaimerID:
		return PartyClaimer, true
	}
	return "", false
}

// Counterpart returns the other party's user ID.
func (c *Claim) Counterpart(userID int64) int64 {
	if userID == c.FinderID {
		return c.ClaimerID
	}
	return c.FinderID
}

// ClaimAction names a workflow transition.
type ClaimAction string

const (
	ActionReject           ClaimAction = "reject"
	ActionRequestIdentity  ClaimAction = "request identity"
	ActionSubmitIdentity   ClaimAction = "submit identity"
	ActionInitiateHandover ClaimAction = "initiate handover"
	ActionConfirmHandover  ClaimAction = "confirm handover"
)

// TransitionRule states who may perform an action and from which states.
type TransitionRule struct {
	Actor Party
	From  []ClaimStatus
	To    ClaimStatus
}

// Allows reports whether the rule accepts a claim currently in s.
func (r TransitionRule) Allows(s ClaimStatus) bool {
	for _, f := range r.From {
		if f == s {
			return true
		}
	}
	return false
}

// ClaimRules is the claim state machine.
var ClaimRules = map[ClaimAction]TransitionRule{
	ActionReject: {
		Actor: PartyFinder,
		From:  OpenClaimStatuses,
		To:    ClaimRejected,
	},
	ActionRequestIdentity: {
		Actor: PartyFinder,
		From:  []ClaimStatus{ClaimActive, ClaimPending, ClaimIdentitySubmitted},
		To:    ClaimIdentityRequested,
	},
	ActionSubmitIdentity: {
		Actor: PartyClaimer,
		From:  []ClaimStatus{ClaimIdentityRequested},
		To:    ClaimIdentitySubmitted,
	},
	ActionInitiateHandover: {
		Actor: PartyFinder,
		From:  []ClaimStatus{ClaimIdentitySubmitted},
		To:    ClaimHandoverInitiated,
	},
	ActionConfirmHandover: {
		Actor: PartyClaimer,
		From:  []ClaimStatus{ClaimHandoverInitiated},
		To:    ClaimReturned,
	},
}

// ClaimTransition is one atomic compare-and-swap on a claim's status
// together with the side effects committed alongside it.
type ClaimTransition struct {
	ClaimID    int64
	From       []ClaimStatus // expected current status, any of
	To         ClaimStatus
	NewCode    string // handover code to store; empty keeps the current one
	ExpectCode string // require the stored handover code to equal this; empty skips the check

	Identity    *IdentityVerification // upserted when set
	RecoverItem bool                  // mark the claim's item Recovered and clear its PIN
	ConsumePIN  string                // with RecoverItem, require the item PIN to equal this

	Message *Message // appended to the claim thread when set
}
