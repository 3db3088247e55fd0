package model

// Event is a domain event appended to the world log by a contract call.
type Event struct {
	Seq     uint64      `json:"seq"`
	Address string      `json:"address"`
	Name    string      `json:"name"`
	Data    interface{} `json:"data"`
}

// Event names emitted by the vault and the factory.
const (
	EventInitialized          = "Initialized"
	EventPoolSet              = "PoolSet"
	EventRefuelAmountSet      = "RefuelAmountSet"
	EventThresholdSet         = "ThresholdSet"
	EventOwnershipTransferred = "OwnershipTransferred"
	EventRefueled             = "Refueled"
	EventRefuelDeployed       = "RefuelDeployed"
	EventBlueprintUpdated     = "BlueprintUpdated"
	EventFeesWithdrawn        = "FeesWithdrawn"
)

// InitializedEventData is the Initialized event payload.
type InitializedEventData struct {
	Owner        string `json:"owner"`
	FeeRecipient string `json:"fee_recipient"`
}

// PoolSetEventData is the PoolSet event payload.
type PoolSetEventData struct {
	Pool string `json:"pool"`
}

// RefuelAmountSetEventData is the RefuelAmountSet event payload.
type RefuelAmountSetEventData struct {
	Amount string `json:"amount"`
}

// ThresholdSetEventData is the ThresholdSet event payload.
type ThresholdSetEventData struct {
	ThresholdBps uint64 `json:"threshold_bps"`
}

// OwnershipTransferredEventData is the OwnershipTransferred event payload.
type OwnershipTransferredEventData struct {
	PreviousOwner string `json:"previous_owner"`
	NewOwner      string `json:"new_owner"`
}

// RefueledEventData is the Refueled event payload. Amounts are decimal strings.
type RefueledEventData struct {
	ShareAmount   string `json:"share_amount"`
	FeeShares     string `json:"fee_shares"`
	DonatedShares string `json:"donated_shares"`
}

// RefuelDeployedEventData is the RefuelDeployed event payload.
type RefuelDeployedEventData struct {
	Instance     string `json:"instance"`
	Owner        string `json:"owner"`
	FeeRecipient string `json:"fee_recipient"`
}

// BlueprintUpdatedEventData is the BlueprintUpdated event payload.
type BlueprintUpdatedEventData struct {
	DefaultThresholdBps uint64 `json:"default_threshold_bps"`
}

// FeesWithdrawnEventData is the FeesWithdrawn event payload.
type FeesWithdrawnEventData struct {
	Asset     string `json:"asset"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}
