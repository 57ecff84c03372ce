package hard

import (
	"hope/internal/adjudication/factory"
	regmodels "hope/internal/registration/models"
	id "hope/pkg/domain"
)

type groupKey struct {
	program id.ProgramID
	key     regmodels.DocumentKey
}

type runPlan struct {
	updates []regmodels.DocumentStatusUpdate
	groups  []factory.Group
}

func (p runPlan) result() *Result {
	res := &Result{}
	for _, u := range p.updates {
		switch u.Status {
		case regmodels.DocumentStatusValid:
			res.Validated = append(res.Validated, u.ID)
		case regmodels.DocumentStatusNeedInvestigation:
			res.NeedInvestigation = append(res.NeedInvestigation, u.ID)
		}
	}
	return res
}

// plan decides every status change and duplicate group of a run. docs are the
// locked rows in primary key order.
func plan(docs []*regmodels.Document, candidates []id.DocumentID, scope id.ImportBatchID) runPlan {
	isCandidate := make(map[id.DocumentID]struct{}, len(candidates))
	for _, c := range candidates {
		isCandidate[c] = struct{}{}
	}

	var order []groupKey
	members := make(map[groupKey][]*regmodels.Document)
	for _, d := range docs {
		key := d.Key()
		if key.IsZero() {
			continue
		}
		gk := groupKey{program: d.ProgramID, key: key}
		if _, ok := members[gk]; !ok {
			order = append(order, gk)
		}
		members[gk] = append(members[gk], d)
	}

	var p runPlan
	for _, gk := range order {
		group := members[gk]
		original := pickOriginal(group, isCandidate)
		if original == nil {
			continue
		}
		if original.Status != regmodels.DocumentStatusValid {
			p.updates = append(p.updates, regmodels.DocumentStatusUpdate{ID: original.ID, Status: regmodels.DocumentStatusValid})
		}

		var dups []regmodels.IndividualRef
		seen := map[id.IndividualID]struct{}{original.IndividualID: {}}
		for _, d := range group {
			if d.ID == original.ID || !eligibleCandidate(d, isCandidate) {
				continue
			}
			if d.IndividualID == original.IndividualID {
				// The same person holding the document twice is not a duplicate.
				if d.Status == regmodels.DocumentStatusPending {
					p.updates = append(p.updates, regmodels.DocumentStatusUpdate{ID: d.ID, Status: regmodels.DocumentStatusValid})
				}
				continue
			}
			if d.Status != regmodels.DocumentStatusNeedInvestigation {
				p.updates = append(p.updates, regmodels.DocumentStatusUpdate{ID: d.ID, Status: regmodels.DocumentStatusNeedInvestigation})
			}
			if _, ok := seen[d.IndividualID]; !ok {
				seen[d.IndividualID] = struct{}{}
				dups = append(dups, d.Owner)
			}
		}
		if len(dups) == 0 {
			continue
		}
		p.groups = append(p.groups, factory.Group{
			GoldenRecord:       original.Owner,
			PossibleDuplicates: dups,
			BusinessAreaID:     original.Owner.BusinessAreaID,
			ImportBatchID:      scope,
		})
	}
	return p
}

func pickOriginal(group []*regmodels.Document, isCandidate map[id.DocumentID]struct{}) *regmodels.Document {
	for _, d := range group {
		if d.Status == regmodels.DocumentStatusValid && !d.Owner.Withdrawn {
			return d
		}
	}
	for _, d := range group {
		if eligibleCandidate(d, isCandidate) {
			return d
		}
	}
	return nil
}

// eligibleCandidate reports whether the run may change the document: it must
// be a candidate, owned by an active individual and not ruled INVALID.
func eligibleCandidate(d *regmodels.Document, isCandidate map[id.DocumentID]struct{}) bool {
	if _, ok := isCandidate[d.ID]; !ok {
		return false
	}
	return !d.Owner.Withdrawn && d.Status != regmodels.DocumentStatusInvalid
}
