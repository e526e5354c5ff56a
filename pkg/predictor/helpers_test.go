package predictor

import (
	"fmt"
	"time"

	"github.com/richard-senior/matchpredictor/pkg/football"
)

var day0 = time.Date(2024, 8, 1, 15, 0, 0, 0, time.UTC)

func result(id string, day int, home, away string, hg, ag int) *football.Match {
	m := football.NewMatch()
	m.ID = id
	m.Kickoff = day0.AddDate(0, 0, day)
	m.Status = football.StatusFinished
	m.HomeID, m.AwayID = home, away
	m.HomeGoals, m.AwayGoals = hg, ag
	return m
}

func fixture(id string, day int, home, away string) *football.Match {
	m := football.NewMatch()
	m.ID = id
	m.Kickoff = day0.AddDate(0, 0, day)
	m.HomeID, m.AwayID = home, away
	return m
}

// syntheticSeason plays six teams of increasing strength home and away twice.
// The stronger side wins, a one-step underdog at home draws 1-1.
func syntheticSeason() []*football.Match {
	const teams = 6
	var matches []*football.Match
	k := 0
	for rep := 0; rep < 2; rep++ {
		for offset := 1; offset < teams; offset++ {
			for h := 0; h < teams; h++ {
				a := (h + offset) % teams
				d := h - a
				var hg, ag int
				switch {
				case d > 0:
					hg, ag = d+1, 0
				case d == -1:
					hg, ag = 1, 1
				default:
					hg, ag = 0, -d-1
				}
				matches = append(matches, result(fmt.Sprintf("m%03d", k), k, fmt.Sprintf("t%d", h), fmt.Sprintf("t%d", a), hg, ag))
				k++
			}
		}
	}
	return matches
}

func smallTrainer() *Trainer {
	tr := DefaultTrainer()
	tr.Params.Trees = 25
	tr.Now = func() time.Time { return day0 }
	return tr
}
