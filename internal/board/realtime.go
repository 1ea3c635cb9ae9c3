package board

import "departures.metraboard.org/internal/models"

// ApplyTripUpdates attaches predictions to departures matched by trip and
// stop. The arrival event wins over the departure event when both exist.
func ApplyTripUpdates(db models.DepartureBoard, updates []models.TripUpdate) {
	type key struct{ tripID, stopID string }
	predictions := make(map[key]*models.StopTimeEvent)
	for _, tu := range updates {
		if tu.IsDeleted {
			continue
		}
		for _, stu := range tu.StopTimeUpdates {
			ev := stu.Arrival
			if ev == nil {
				ev = stu.Departure
			}
			if ev == nil {
				continue
			}
			predictions[key{tu.TripID, stu.StopID}] = ev
		}
	}
	if len(predictions) == 0 {
		return
	}

	for _, list := range db {
		for _, sb := range list {
			for dir, deps := range sb.Times {
				for i := range deps {
					if ev, ok := predictions[key{deps[i].TripID, deps[i].StopID}]; ok {
						copied := *ev
						deps[i].Prediction = &copied
					}
				}
				sb.Times[dir] = deps
			}
		}
	}
}
