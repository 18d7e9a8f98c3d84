package avax

import "github.com/malbeclabs/stakes/stakes/pkg/snapshot"

type owner struct {
	Locktime  snapshot.Amount `json:"locktime"`
	Threshold snapshot.Amount `json:"threshold"`
	Addresses []string        `json:"addresses"`
}

type delegator struct {
	TxID        string           `json:"txID"`
	NodeID      string           `json:"nodeID"`
	Weight      *snapshot.Amount `json:"weight"`
	StakeAmount *snapshot.Amount `json:"stakeAmount"`
}

func (d delegator) amount() uint64 {
	switch {
	case d.Weight != nil:
		return uint64(*d.Weight)
	case d.StakeAmount != nil:
		return uint64(*d.StakeAmount)
	}
	return 0
}

// apiValidator is one entry of platform.getCurrentValidators. Nodes older than v1.9 report
// stakeAmount and rewardOwner; newer ones report weight and validationRewardOwner.
type apiValidator struct {
	TxID                  string           `json:"txID"`
	NodeID                string           `json:"nodeID"`
	StartTime             snapshot.Amount  `json:"startTime"`
	EndTime               snapshot.Amount  `json:"endTime"`
	Weight                *snapshot.Amount `json:"weight"`
	StakeAmount           *snapshot.Amount `json:"stakeAmount"`
	ValidationRewardOwner *owner           `json:"validationRewardOwner"`
	RewardOwner           *owner           `json:"rewardOwner"`
	DelegatorCount        snapshot.Amount  `json:"delegatorCount"`
	DelegatorWeight       *snapshot.Amount `json:"delegatorWeight"`
	Delegators            []delegator      `json:"delegators"`
	Connected             bool             `json:"connected"`
}

type getCurrentValidatorsArgs struct {
	SubnetID string   `json:"subnetID,omitempty"`
	NodeIDs  []string `json:"nodeIDs,omitempty"`
}

type getCurrentValidatorsReply struct {
	Validators []apiValidator `json:"validators"`
}

type apiPeer struct {
	IP           string `json:"ip"`
	PublicIP     string `json:"publicIP"`
	NodeID       string `json:"nodeID"`
	Version      string `json:"version"`
	LastSent     string `json:"lastSent"`
	LastReceived string `json:"lastReceived"`
}

type peersArgs struct {
	NodeIDs []string `json:"nodeIDs,omitempty"`
}

type peersReply struct {
	NumPeers snapshot.Amount `json:"numPeers"`
	Peers    []apiPeer       `json:"peers"`
}
