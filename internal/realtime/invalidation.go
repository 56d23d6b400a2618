package realtime

// Collection names a cached REST collection.
type Collection string

const (
	CollectionUsers          Collection = "usuarios"
	CollectionDevices        Collection = "dispositivos"
	CollectionDashboardStats Collection = "dashboard-stats"
	CollectionStolenPings    Collection = "pings-roubados"
	CollectionEmergencies    Collection = "emergencias"
)

// Collections lists every collection the bridge can invalidate.
var Collections = []Collection{
	CollectionUsers,
	CollectionDevices,
	CollectionDashboardStats,
	CollectionStolenPings,
	CollectionEmergencies,
}

// invalidations is the only authority on what an event refreshes. Every
// recognized type maps to a non-empty set.
var invalidations = map[EventType][]Collection{
	TypeUserCreated:         {CollectionUsers},
	TypeUserUpdated:         {CollectionUsers},
	TypeUserDeleted:         {CollectionUsers},
	TypeDeviceCreated:       {CollectionDevices, CollectionDashboardStats, CollectionStolenPings},
	TypeDevicePing:          {CollectionDevices, CollectionDashboardStats, CollectionStolenPings},
	TypeDeviceStatusChanged: {CollectionDevices, CollectionDashboardStats, CollectionStolenPings},
	TypeStolenDeviceLocated: {CollectionDevices, CollectionStolenPings},
	TypeEmergencyCreated:    {CollectionEmergencies},
	TypeEmergencyResponse:   {CollectionEmergencies},
}

// Invalidations returns the collections made stale by an event type, or nil
// for types the console does not recognize.
func Invalidations(t EventType) []Collection {
	cols, ok := invalidations[t]
	if !ok {
		return nil
	}
	out := make([]Collection, len(cols))
	copy(out, cols)
	return out
}

// Invalidator is the data-fetching layer as seen by the bridge: it is told
// which collections are stale and owns any refetching and its failures.
type Invalidator interface {
	Invalidate(collections ...Collection)
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(collections ...Collection)

func (f InvalidatorFunc) Invalidate(collections ...Collection) { f(collections...) }

// Bridge applies the invalidation table to decoded events.
type Bridge struct {
	target Invalidator
}

func NewBridge(target Invalidator) *Bridge {
	return &Bridge{target: target}
}

// Apply marks the collections affected by ev as stale.
func (b *Bridge) Apply(ev Event) {
	if b == nil || b.target == nil || ev == nil {
		return
	}
	cols := Invalidations(ev.Type())
	if len(cols) == 0 {
		return
	}
	b.target.Invalidate(cols...)
}
