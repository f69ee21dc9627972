//go:build !windows

package links

func probeStrategy() Strategy {
	return StrategySymlink
}
