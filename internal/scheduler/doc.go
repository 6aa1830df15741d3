// Package scheduler runs the engine's periodic background jobs: the
// hourly reminder scan and the frequent email queue drain. Each job runs
// once shortly after start and then on its own ticker.
package scheduler
