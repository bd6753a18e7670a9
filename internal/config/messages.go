package config

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultMessages is the built-in message table. Placeholders are {0}, {1}, ...
func DefaultMessages() map[string]string {
	return map[string]string{
		// errors
		"already_claimed":       "Chunk {0} is already claimed.",
		"claim_limit_reached":   "You have reached your claim limit.",
		"not_owner":             "You do not own this chunk.",
		"not_claimed":           "This chunk is not claimed.",
		"claim_in_pvp_area":     "You cannot claim land inside a PVP area.",
		"claim_requires_peace":  "Only peaceful players can claim land.",
		"same_mode":             "You are already in {0} mode.",
		"mode_cooldown":         "You can change your mode again {0}.",
		"mode_unset":            "Choose a mode first with /setmode.",
		"no_pending_mode":       "There is no mode change waiting for confirmation.",
		"invitee_not_peaceful":  "{0} is not in peaceful mode.",
		"invite_self":           "You cannot invite yourself.",
		"invite_requires_peace": "Only peaceful players can invite others.",
		"not_invited":           "{0} is not invited to your land.",
		"no_manage_permission":  "You may not manage invitations for {0}.",
		"pvp_area_exists":       "A PVP area named {0} already exists.",
		"pvp_area_not_found":    "No PVP area named {0}.",
		"pvp_area_bad_name":     "PVP area names must be 1-32 letters, digits, '-' or '_'.",
		"pvp_area_bad_world":    "Both corners must be in the same world.",
		"reputation_range":      "Reputation must be between -15 and 15.",
		"claims_range":          "Claim counts must be between 0 and 1000.",
		"economy_unavailable":   "Claim purchasing is disabled on this server.",
		"insufficient_funds":    "You need {0} to buy {1} claim(s).",
		"purchase_limit":        "You cannot own more than {0} purchased claims.",
		"no_permission":         "You do not have permission to do that.",
		"bad_usage":             "Usage: {0}",
		"bad_number":            "{0} is not a valid number.",
		"unknown_command":       "Unknown command {0}.",
		"player_not_found":      "Unknown player {0}.",
		"persistence_timeout":   "The server is busy, please try again.",
		"persistence_busy":      "The server is busy, please try again.",
		"persistence_closed":    "The server is shutting down.",
		"persist_failed":        "Your last change could not be saved, please try again.",
		"internal_error":        "Something went wrong, please try again.",
		"engine_stopped":        "The server is shutting down.",
		"mode_already_chosen":   "You already chose a mode; use /setmode to request a change.",

		// results
		"claim_success":            "Claimed chunk {0}. ({1}/{2})",
		"unclaim_success":          "Unclaimed chunk {0}.",
		"claims_header":            "Your claims ({0}/{1}):",
		"claims_entry":             " - {0}",
		"claims_none":              "You have no claims.",
		"claiminfo_unclaimed":      "Chunk {0} is unclaimed.",
		"claiminfo_owned":          "Chunk {0} is owned by {1} since {2}.",
		"claiminfo_pvp":            "Chunk {0} touches PVP area {1}.",
		"claiminfo_region":         "Chunk {0} is protected by a region.",
		"show_header":              "Claims within {0} chunks:",
		"show_entry":               " - {0} owned by {1}",
		"invite_success":           "Invited {0} to all of your land ({1}).",
		"invited_notice":           "{0} invited you to their land.",
		"uninvite_success":         "Removed {0} from your land.",
		"invitation_updated":       "{0} now has {1} access.",
		"invitations_header":       "Invitations:",
		"invitations_entry":        " - {0}: {1}",
		"invitations_none":         "No invitations.",
		"invitations_revoked":      "Your invitations were revoked because you left peaceful mode.",
		"mode_set":                 "You are now in {0} mode.",
		"mode_choose":              "Choose your mode with /setmode peaceful or /setmode normal.",
		"mode_confirm":             "Type /setmode confirm within {0} seconds to switch to {1} mode.",
		"mode_changed_claims_lost": "You are now in {0} mode. {1} claim(s) were released.",
		"mode_forced":              "Set {0} to {1} mode.",
		"mode_status":              "{0} is in {1} mode.",
		"rep_value":                "{0} has {1} reputation.",
		"rep_set":                  "Set reputation of {0} to {1}.",
		"rep_added":                "Changed reputation of {0} by {1} (now {2}).",
		"noob_granted":             "{0} is now protected from PVP; it ends {1}.",
		"noob_active":              "{0} is protected from PVP; it ends {1}.",
		"noob_inactive":            "{0} has no PVP protection.",
		"buy_success":              "Bought {0} claim(s) for {1}.",
		"claims_set":               "{0} now has {1} purchased claim(s).",
		"pvparea_created":          "Created PVP area {0}.",
		"pvparea_deleted":          "Deleted PVP area {0}.",
		"pvparea_entry":            " - {0} in {1} from {2} to {3}",
		"pvparea_none":             "No PVP areas.",
		"reload_done":              "Configuration reloaded.",
		"reputation_penalty":       "You lost reputation for killing {0} outside a PVP area.",
		"reputation_gained":        "You gained {0} reputation for playing.",
	}
}

// Format substitutes {n} placeholders with args[n]. Unknown placeholders are
// left untouched.
func Format(template string, args ...any) string {
	if len(args) == 0 || !strings.Contains(template, "{") {
		return template
	}
	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '{' {
			b.WriteByte(c)
			continue
		}
		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			b.WriteString(template[i:])
			break
		}
		n, err := strconv.Atoi(template[i+1 : i+end])
		if err != nil || n < 0 || n >= len(args) {
			b.WriteString(template[i : i+end+1])
		} else {
			fmt.Fprint(&b, args[n])
		}
		i += end
	}
	return b.String()
}

// Render looks key up in the table and formats it; unknown keys render as
// the key itself so a missing template is visible rather than silent.
func (c Config) Render(key string, args ...any) string {
	t, ok := c.Messages[key]
	if !ok {
		t = key
	}
	return Format(t, args...)
}
