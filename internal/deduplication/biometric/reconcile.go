package biometric

import (
	"context"
	"slices"

	"hope/internal/adjudication/factory"
	adjmodels "hope/internal/adjudication/models"
	"hope/internal/deduplication/biometric/client"
	regmodels "hope/internal/registration/models"
	id "hope/pkg/domain"
	dErrors "hope/pkg/domain-errors"
)

// ReconcileResult reports what ReconcileFindings recorded.
type ReconcileResult struct {
	Finished        []id.ImportBatchID
	Pairs           int
	TicketsCreated  []id.TicketID
	TicketsAttached []id.TicketID
}

// ReconcileFindings reads the findings of the program's finished engine run
// and records them: similarity pairs, golden record statuses of the
// individuals uploaded by the IN_PROGRESS batches, BIOMETRICS_SIMILARITY
// tickets, and FINISHED for those batches. Everything is written in one
// transaction. Without IN_PROGRESS batches it does nothing.
func (s *Service) ReconcileFindings(ctx context.Context, programID id.ProgramID) (*ReconcileResult, error) {
	program, err := s.store.GetProgram(ctx, programID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load program")
	}
	if !program.HasDeduplicationSet() {
		return nil, dErrors.Wrap(ErrNoDeduplicationSet, dErrors.CodePreconditionFailed, "cannot reconcile findings")
	}
	batches, err := s.store.ListImportBatches(ctx, programID, regmodels.EngineStatusInProgress)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list import batches")
	}
	res := &ReconcileResult{}
	if len(batches) == 0 {
		return res, nil
	}

	findings, err := s.engine.GetDuplicates(ctx, program.DeduplicationSetID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch deduplication findings",
			"program_id", programID.String(),
			"set_id", program.DeduplicationSetID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to fetch deduplication findings")
	}

	uploaded := make(map[id.IndividualID]struct{})
	for _, b := range batches {
		images, err := s.store.ListBatchImages(ctx, b.ID)
		if err != nil {
			return nil, wrapStoreErr(err, "failed to list batch images")
		}
		for _, img := range images {
			uploaded[img.IndividualID] = struct{}{}
		}
	}

	pairs := s.similarityPairs(ctx, programID, findings)
	var created []*adjmodels.Ticket
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.SaveSimilarityPairs(ctx, pairs); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save similarity pairs")
		}
		if err := s.store.UpdateGoldenRecordResults(ctx, s.goldenRecordUpdates(uploaded, pairs)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update golden record statuses")
		}

		groups, err := s.similarityGroups(ctx, program, uploaded, pairs)
		if err != nil {
			return err
		}
		outcome, err := s.tickets.CreateOrAttach(ctx, adjmodels.IssueTypeBiometricsSimilarity, groups)
		if err != nil {
			return err
		}
		created = outcome.Created
		for _, t := range outcome.Created {
			res.TicketsCreated = append(res.TicketsCreated, t.ID)
		}
		for _, t := range outcome.Attached {
			res.TicketsAttached = append(res.TicketsAttached, t.ID)
		}

		ids := make([]id.ImportBatchID, len(batches))
		for k, b := range batches {
			ids[k] = b.ID
		}
		if err := s.store.UpdateImportBatchStatus(ctx, ids, regmodels.EngineStatusFinished); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to finish import batches")
		}
		res.Finished = ids
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.tickets.NotifyCreated(ctx, created)
	s.metrics.AddBatchTransitions(string(regmodels.EngineStatusFinished), len(res.Finished))
	res.Pairs = len(pairs)
	s.logger.InfoContext(ctx, "biometric findings reconciled",
		"program_id", programID.String(),
		"batches", len(res.Finished),
		"pairs", res.Pairs,
		"tickets_created", len(res.TicketsCreated),
		"tickets_attached", len(res.TicketsAttached),
	)
	return res, nil
}

// similarityPairs keeps the findings scoring at least the similarity
// threshold, once per unordered pair with the highest score.
func (s *Service) similarityPairs(ctx context.Context, programID id.ProgramID, findings []client.Finding) []regmodels.SimilarityPair {
	type key struct{ a, b id.IndividualID }
	best := make(map[key]regmodels.SimilarityPair)
	var order []key
	for _, f := range findings {
		if f.Score < s.thresholds.Similarity {
			continue
		}
		a, errA := id.ParseIndividualID(f.First)
		b, errB := id.ParseIndividualID(f.Second)
		if errA != nil || errB != nil || a == b {
			s.logger.WarnContext(ctx, "skipping unusable deduplication finding",
				"program_id", programID.String(),
				"first", f.First,
				"second", f.Second,
			)
			continue
		}
		p := regmodels.NewSimilarityPair(programID, a, b, f.Score)
		k := key{p.IndividualA, p.IndividualB}
		prev, seen := best[k]
		if !seen {
			order = append(order, k)
		}
		if !seen || p.Score > prev.Score {
			best[k] = p
		}
	}
	out := make([]regmodels.SimilarityPair, len(order))
	for i, k := range order {
		out[i] = best[k]
	}
	return out
}

// goldenRecordUpdates classifies every uploaded individual by its best score.
func (s *Service) goldenRecordUpdates(uploaded map[id.IndividualID]struct{}, pairs []regmodels.SimilarityPair) []regmodels.GoldenRecordUpdate {
	results := make(map[id.IndividualID]*regmodels.DeduplicationResults, len(uploaded))
	for iid := range uploaded {
		results[iid] = &regmodels.DeduplicationResults{}
	}
	for _, p := range pairs {
		if r, ok := results[p.IndividualA]; ok {
			r.Add(regmodels.DuplicateHit{IndividualID: p.IndividualB, Score: p.Score})
		}
		if r, ok := results[p.IndividualB]; ok {
			r.Add(regmodels.DuplicateHit{IndividualID: p.IndividualA, Score: p.Score})
		}
	}

	updates := make([]regmodels.GoldenRecordUpdate, 0, len(results))
	for iid, r := range results {
		status := regmodels.GoldenRecordUnique
		switch {
		case len(r.Duplicates) == 0:
		case r.ScoreMax >= s.thresholds.Duplicate:
			status = regmodels.GoldenRecordDuplicate
		default:
			status = regmodels.GoldenRecordSimilar
		}
		updates = append(updates, regmodels.GoldenRecordUpdate{IndividualID: iid, Status: status, Results: *r})
	}
	slices.SortFunc(updates, func(a, b regmodels.GoldenRecordUpdate) int {
		switch {
		case a.IndividualID.Less(b.IndividualID):
			return -1
		case b.IndividualID.Less(a.IndividualID):
			return 1
		}
		return 0
	})
	return updates
}

// similarityGroups turns pairs into ticket groups. Only pairs touching an
// individual uploaded by the batches being reconciled count; older findings
// were ticketed by the run that reported them. The golden record of a pair is
// the individual that was already in the population; when both came in with
// this run it is the lower ID.
func (s *Service) similarityGroups(ctx context.Context, program *regmodels.Program, uploaded map[id.IndividualID]struct{}, pairs []regmodels.SimilarityPair) ([]factory.Group, error) {
	var fresh []regmodels.SimilarityPair
	var ids []id.IndividualID
	for _, p := range pairs {
		_, aNew := uploaded[p.IndividualA]
		_, bNew := uploaded[p.IndividualB]
		if !aNew && !bNew {
			continue
		}
		fresh = append(fresh, p)
		ids = append(ids, p.IndividualA, p.IndividualB)
	}
	if len(fresh) == 0 {
		return nil, nil
	}
	refs, err := s.store.GetIndividualRefs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load individuals")
	}
	byID := make(map[id.IndividualID]regmodels.IndividualRef, len(refs))
	for _, r := range refs {
		byID[r.ID] = r
	}

	var order []id.IndividualID
	groups := make(map[id.IndividualID]*factory.Group)
	for _, p := range fresh {
		golden, dup := p.IndividualA, p.IndividualB
		_, aNew := uploaded[golden]
		_, bNew := uploaded[dup]
		if aNew && !bNew {
			golden, dup = dup, golden
		}
		goldenRef, ok := byID[golden]
		dupRef, ok2 := byID[dup]
		if !ok || !ok2 || goldenRef.Withdrawn || dupRef.Withdrawn {
			continue
		}
		g, ok := groups[golden]
		if !ok {
			g = &factory.Group{
				GoldenRecord:   goldenRef,
				BusinessAreaID: program.BusinessAreaID,
				Programs:       []id.ProgramID{program.ID},
				ScoreMin:       p.Score,
				ScoreMax:       p.Score,
			}
			groups[golden] = g
			order = append(order, golden)
		}
		g.PossibleDuplicates = append(g.PossibleDuplicates, dupRef)
		g.ScoreMin = min(g.ScoreMin, p.Score)
		g.ScoreMax = max(g.ScoreMax, p.Score)
	}

	out := make([]factory.Group, 0, len(order))
	for _, golden := range order {
		out = append(out, *groups[golden])
	}
	return out, nil
}
