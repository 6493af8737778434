package dataset

import "sort"

// downsampleReadings implements spec.md §4.A's downsample semantics over
// an already-loaded, unsorted slice of readings for one sensor. Shared by
// every backend so the bucketing and averaging rules (and the invariants
// in spec.md §8, properties 3 and the "interval = end-start" round trip)
// hold identically regardless of backend.
func downsampleReadings(readings []Reading, startUS, endUS, intervalUS int64) []Reading {
	if intervalUS <= 0 || endUS <= startUS {
		return nil
	}

	type bucket struct {
		sum   float64
		count int
		first Reading
	}
	buckets := make(map[int64]*bucket)

	for _, r := range readings {
		if r.TimestampUS < startUS || r.TimestampUS >= endUS {
			continue
		}
		k := (r.TimestampUS - startUS) / intervalUS
		bucketStart := startUS + k*intervalUS
		b, ok := buckets[bucketStart]
		if !ok {
			b = &bucket{first: r}
			buckets[bucketStart] = b
		}
		b.sum += float64(r.Quality)
		b.count++
	}

	out := make([]Reading, 0, len(buckets))
	for bucketStart, b := range buckets {
		avg := float32(b.sum / float64(b.count))
		out = append(out, Reading{
			SensorID:    b.first.SensorID,
			TimestampUS: bucketStart,
			DataType:    b.first.DataType,
			Payload:     b.first.Payload,
			Quality:     avg,
			Metadata:    b.first.Metadata,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TimestampUS < out[j].TimestampUS })
	return out
}

// nearestReading finds the reading in readings closest to targetUS,
// within windowUS on either side, ties broken by lower timestamp, per
// spec.md §4.A "get_reading_at" and §8 property 4.
func nearestReading(readings []Reading, targetUS int64, windowUS int64) (Reading, bool) {
	var best Reading
	found := false
	var bestDiff int64

	for _, r := range readings {
		diff := r.TimestampUS - targetUS
		if diff < 0 {
			diff = -diff
		}
		if diff > windowUS {
			continue
		}
		if !found {
			best, bestDiff, found = r, diff, true
			continue
		}
		if diff < bestDiff || (diff == bestDiff && r.TimestampUS < best.TimestampUS) {
			best, bestDiff = r, diff
		}
	}
	return best, found
}

// defaultSearchWindowUS is the default ±1s window for get_reading_at, per
// spec.md §4.A.
const defaultSearchWindowUS int64 = 1_000_000

// sortReadings orders readings by (timestamp_us asc, sensor_id asc), per
// spec.md §5 "Dataset Store readings returned by query are sorted by
// timestamp then sensor-id".
func sortReadings(readings []Reading) {
	sort.Slice(readings, func(i, j int) bool {
		if readings[i].TimestampUS != readings[j].TimestampUS {
			return readings[i].TimestampUS < readings[j].TimestampUS
		}
		return readings[i].SensorID < readings[j].SensorID
	})
}
