package realtime

// Named domain events fanned out to rooms. Payloads carry the changed
// entity when it is small; clients treat any event as a trigger to
// refetch the authoritative resource, so a lost or duplicated event
// costs at most a brief staleness window.
const (
	EventSongCreated = "song:created"
	EventSongUpdated = "song:updated"
	EventSongDeleted = "song:deleted"

	EventLineupCreated = "lineup:created"
	EventLineupUpdated = "lineup:updated"
	EventLineupDeleted = "lineup:deleted"

	EventLineupSongAdded     = "lineup-song:added"
	EventLineupSongRemoved   = "lineup-song:removed"
	EventLineupSongReordered = "lineup-song:reordered"
	EventChartUploaded       = "lineup-song:chart-uploaded"
	EventChartDeleted        = "lineup-song:chart-deleted"

	EventInvitationPending  = "invitation:pending"
	EventInvitationAccepted = "user:invitation-accepted"
	EventInvitationRejected = "user:invitation-rejected"
	EventLeftCollection     = "user:left-collection"
	EventUninvited          = "user:uninvited"
)
