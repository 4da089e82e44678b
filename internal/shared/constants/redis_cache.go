package constants

import (
	"fmt"
	"time"
)

// Redis Cache Configuration
// Pattern: ferryline:{module}:{operation}:{identifier}:{params?}

// ================== CACHE TTL DURATIONS ==================

// Semi-Static Data (Medium TTL: changes occasionally)
const (
	TTL_SEMI_STATIC_LONG  = 4 * time.Hour    // boat layouts
	TTL_SEMI_STATIC_SHORT = 1 * time.Hour    // ticket types, tax profiles
	TTL_SEMI_STATIC_QUICK = 15 * time.Minute // schedule listings
)

// Highly Dynamic (Micro TTL: real-time sensitive)
const (
	TTL_REALTIME_SHORT = 15 * time.Second // seat maps
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "ferryline"
)

// ================== SCHEDULES MODULE ==================

const (
	CACHE_KEY_SCHEDULES_LIST   = CACHE_PREFIX + ":schedules:list"      // + :date:X:owner:Y:page:Z
	CACHE_KEY_BOAT_LAYOUT      = CACHE_PREFIX + ":boats:layout:uuid:"  // + boat-id
	CACHE_KEY_SCHEDULE_SEATMAP = CACHE_PREFIX + ":seats:map:schedule:" // + schedule-id
)

const (
	TTL_SCHEDULE_LIST = TTL_SEMI_STATIC_QUICK
	TTL_BOAT_LAYOUT   = TTL_SEMI_STATIC_LONG
	TTL_SEAT_MAP      = TTL_REALTIME_SHORT
)

// ================== CATALOG MODULE ==================

const (
	CACHE_KEY_TICKET_TYPES_SCHEDULE = CACHE_PREFIX + ":catalog:ticket_types:schedule:" // + schedule-id
)

const (
	TTL_TICKET_TYPES = TTL_SEMI_STATIC_SHORT
)

// ================== SEAT HOLDS (Lua) ==================

const (
	HOLD_KEY_PREFIX       = CACHE_PREFIX + ":hold:"       // + hold-id -> hash
	HOLD_SEAT_KEY_PREFIX  = CACHE_PREFIX + ":seat_hold:"  // + schedule-id:seat-no -> hold-id
	HOLD_SEATS_KEY_PREFIX = CACHE_PREFIX + ":hold_seats:" // + hold-id -> set of seat-no
)

// ================== DRAFTS & SESSIONS ==================

const (
	DRAFT_KEY_PREFIX   = CACHE_PREFIX + ":drafts:uuid:"  // + draft-id
	SESSION_KEY_PREFIX = CACHE_PREFIX + ":sessions:sid:" // + session-id
	RATE_LIMIT_PREFIX  = CACHE_PREFIX + ":rate_limit:"   // + type:identifier
)

// ================== INVALIDATION PATTERNS ==================

const (
	PATTERN_SCHEDULE_LISTINGS = CACHE_KEY_SCHEDULES_LIST + ":*"
	PATTERN_TICKET_TYPES_ALL  = CACHE_PREFIX + ":catalog:ticket_types:*"
)

// ================== KEY BUILDERS ==================

func BuildScheduleListKey(date, ownerID string, page, limit int) string {
	return fmt.Sprintf("%s:date:%s:owner:%s:page:%d:limit:%d", CACHE_KEY_SCHEDULES_LIST, date, ownerID, page, limit)
}

func BuildSeatMapKey(scheduleID string) string {
	return CACHE_KEY_SCHEDULE_SEATMAP + scheduleID
}

func BuildBoatLayoutKey(boatID string) string {
	return CACHE_KEY_BOAT_LAYOUT + boatID
}

func BuildTicketTypesKey(scheduleID string) string {
	return CACHE_KEY_TICKET_TYPES_SCHEDULE + scheduleID
}

func BuildHoldKey(holdID string) string {
	return HOLD_KEY_PREFIX + holdID
}

func BuildSeatHoldKey(scheduleID, seatNo string) string {
	return HOLD_SEAT_KEY_PREFIX + scheduleID + ":" + seatNo
}

func BuildHoldSeatsKey(holdID string) string {
	return HOLD_SEATS_KEY_PREFIX + holdID
}

func BuildDraftKey(draftID string) string {
	return DRAFT_KEY_PREFIX + draftID
}

func BuildSessionKey(sessionID string) string {
	return SESSION_KEY_PREFIX + sessionID
}
