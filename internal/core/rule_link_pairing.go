package core

import (
	"context"
	"fmt"

	"custodycore/pkg/domain"
)

// NewLinkPairingRule returns the rule keeping transactions and signature links
// paired: an attribution or ajout created in the transaction must have exactly
// one link for its token, a retour none, and every new link must reference an
// existing transaction.
func NewLinkPairingRule() domain.Rule {
	return linkPairingRule{}
}

type linkPairingRule struct{}

func (linkPairingRule) Name() string { return "link_pairing" }

func (r linkPairingRule) Evaluate(_ context.Context, view domain.TxView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Action != domain.ActionCreate {
			continue
		}
		switch after := change.After.(type) {
		case domain.Transaction:
			if msg := r.checkTransaction(view, after); msg != "" {
				res.Violations = append(res.Violations, r.violation(domain.EntityTransaction, after.ID, msg))
			}
		case domain.SignatureLink:
			if _, ok := view.FindTransaction(after.TransactionID); !ok {
				res.Violations = append(res.Violations, r.violation(domain.EntityLink, after.TransactionID,
					fmt.Sprintf("link references unknown transaction %s", after.TransactionID)))
			}
		}
	}
	return res, nil
}

func (linkPairingRule) checkTransaction(view domain.TxView, t domain.Transaction) string {
	paired := 0
	for _, l := range view.ListLinks() {
		if l.TransactionID == t.ID {
			paired++
		}
	}
	if !t.Type.RequiresSignature() {
		if t.LinkToken != nil || paired > 0 {
			return fmt.Sprintf("%s transaction must not carry a signature link", t.Type)
		}
		return ""
	}
	if t.LinkToken == nil {
		return fmt.Sprintf("%s transaction has no link token", t.Type)
	}
	if paired != 1 {
		return fmt.Sprintf("%s transaction has %d links, want 1", t.Type, paired)
	}
	if l, ok := view.FindLink(*t.LinkToken); !ok || l.TransactionID != t.ID {
		return "link token does not resolve to this transaction"
	}
	return ""
}

func (linkPairingRule) violation(entity domain.EntityType, id, msg string) domain.Violation {
	return domain.Violation{
		Rule:     "link_pairing",
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   entity,
		EntityID: id,
	}
}
