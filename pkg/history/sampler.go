package history

// Sample draws a choice for an undecided device by scanning a full history,
// such as a Snapshot. Unset entries are ignored. DecisionHistory.Resolve keeps
// the same counts incrementally and draws identically for the same source.
func Sample(entries []Choice, rnd RandomSource) Choice {
	locals, offloads := 0, 0
	for _, c := range entries {
		switch c {
		case Offload:
			offloads++
		case Local:
			locals++
		}
	}
	return sample(locals, offloads, rnd)
}

// sample builds a pool of locals+offloads slots whose first `locals` slots mean
// Offload, then draws an index from it. More local history therefore makes an
// offload draw more likely. An empty pool is a fair coin.
func sample(locals, offloads int, rnd RandomSource) Choice {
	pool := locals + offloads
	if pool == 0 {
		if rnd.Intn(2) == 1 {
			return Offload
		}
		return Local
	}

	if rnd.Intn(pool) < locals {
		return Offload
	}
	return Local
}
