// Package license derives the active plan and its entitlements from the
// configured license key. Permission syncing is an enterprise capability; the
// sync engines consult HasEntitlement once at startup and refuse to run
// without it.
package license

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

type Plan string

const (
	PlanOSS                 Plan = "oss"
	PlanEnterprise          Plan = "enterprise"
	PlanEnterpriseUnlimited Plan = "enterprise-unlimited"
)

type Entitlement string

const (
	EntitlementPermissionSyncing Entitlement = "permission-syncing"
	EntitlementAuditLogs         Entitlement = "audit-logs"
	EntitlementSSO               Entitlement = "sso"
)

var entitlementsByPlan = map[Plan][]Entitlement{
	PlanOSS:                 {},
	PlanEnterprise:          {EntitlementPermissionSyncing, EntitlementAuditLogs, EntitlementSSO},
	PlanEnterpriseUnlimited: {EntitlementPermissionSyncing, EntitlementAuditLogs, EntitlementSSO},
}

const keyPrefix = "permsync_ee_"

// UnlimitedSeats marks a key without a seat cap.
const UnlimitedSeats = -1

type keyPayload struct {
	ID         string `json:"id"`
	Seats      int    `json:"seats"`
	ExpiryDate string `json:"expiryDate"` // ISO 8601
	Sig        string `json:"sig"`
}

// License is the resolved plan for this deployment.
type License struct {
	plan  Plan
	seats int
}

// Parse resolves a license key into a License. An empty key yields the OSS
// plan. publicKey, when non-nil, must verify the key's embedded signature;
// keys issued without verification material are rejected in that mode.
func Parse(key string, publicKey ed25519.PublicKey) (*License, error) {
	if key == "" {
		return &License{plan: PlanOSS, seats: UnlimitedSeats}, nil
	}

	if len(key) <= len(keyPrefix) || key[:len(keyPrefix)] != keyPrefix {
		return nil, fmt.Errorf("license key does not have the %q prefix", keyPrefix)
	}

	raw, err := base64.StdEncoding.DecodeString(key[len(keyPrefix):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode license key payload: %w", err)
	}

	var payload keyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse license key payload: %w", err)
	}

	if publicKey != nil {
		sig, err := base64.StdEncoding.DecodeString(payload.Sig)
		if err != nil {
			return nil, fmt.Errorf("failed to decode license key signature: %w", err)
		}
		if !ed25519.Verify(publicKey, signedPayload(payload), sig) {
			return nil, fmt.Errorf("license key signature verification failed")
		}
	}

	expiry, err := time.Parse(time.RFC3339, payload.ExpiryDate)
	if err != nil {
		return nil, fmt.Errorf("invalid license expiry date: %w", err)
	}
	if expiry.Before(time.Now()) {
		return nil, fmt.Errorf("license key expired on %s", expiry.Format(time.RFC3339))
	}

	plan := PlanEnterprise
	if payload.Seats == UnlimitedSeats {
		plan = PlanEnterpriseUnlimited
	}
	return &License{plan: plan, seats: payload.Seats}, nil
}

// signedPayload is the canonical byte form covered by the signature: the
// payload fields in fixed order, without the signature itself.
func signedPayload(p keyPayload) []byte {
	canonical, _ := json.Marshal(struct {
		ExpiryDate string `json:"expiryDate"`
		ID         string `json:"id"`
		Seats      int    `json:"seats"`
	}{
		ExpiryDate: p.ExpiryDate,
		ID:         p.ID,
		Seats:      p.Seats,
	})
	return canonical
}

func (l *License) Plan() Plan {
	return l.plan
}

func (l *License) Seats() int {
	return l.seats
}

func (l *License) HasEntitlement(entitlement Entitlement) bool {
	for _, e := range entitlementsByPlan[l.plan] {
		if e == entitlement {
			return true
		}
	}
	return false
}
