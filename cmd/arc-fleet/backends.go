package main

// Configuration store backends register themselves by name.
import (
	_ "github.com/gezibash/arc-fleet/internal/groupstore/physical/badger"
	_ "github.com/gezibash/arc-fleet/internal/groupstore/physical/memory"
	_ "github.com/gezibash/arc-fleet/internal/groupstore/physical/redis"
	_ "github.com/gezibash/arc-fleet/internal/groupstore/physical/s3"
	_ "github.com/gezibash/arc-fleet/internal/groupstore/physical/sqlite"
)
