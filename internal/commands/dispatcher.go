// Package commands is the textual command surface. Each command parses its
// arguments, calls the service and answers with message-table keys.
package commands

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"peaceclaims.dev/internal/config"
	"peaceclaims.dev/internal/economy"
	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/modes"
	"peaceclaims.dev/internal/protocol"
	"peaceclaims.dev/internal/resolver"
	"peaceclaims.dev/internal/service"
)

// Players maps names to ids and back.
type Players interface {
	Lookup(name string) (model.PlayerID, bool)
	Name(id model.PlayerID) string
}

// Sender is who typed the command and where they stand. Console senders
// have no location and pass every permission check.
type Sender struct {
	ID       model.PlayerID
	Location model.Location
	Console  bool
}

type Dispatcher struct {
	svc     *service.Service
	players Players
	// reload re-reads configuration from disk.
	reload func() (config.Config, error)
	now    func() time.Time
}

func New(svc *service.Service, players Players, reload func() (config.Config, error)) *Dispatcher {
	return &Dispatcher{svc: svc, players: players, reload: reload, now: time.Now}
}

type handler func(ctx context.Context, s Sender, args []string) Reply

// Run executes one command line. It must be called on the engine loop.
func (d *Dispatcher) Run(ctx context.Context, s Sender, line string) Reply {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return say("unknown_command", "")
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	h, admin := d.lookup(name)
	if h == nil {
		return say("unknown_command", name)
	}
	if admin && !d.allowed(s, resolver.NodeAdmin) {
		return fail(errNoPermission)
	}
	return h(ctx, s, args)
}

func (d *Dispatcher) lookup(name string) (handler, bool) {
	switch name {
	case "claim":
		return d.claim, false
	case "unclaim":
		return d.unclaim, false
	case "claims":
		return d.claims, false
	case "claiminfo":
		return d.claimInfo, false
	case "show":
		return d.show, false
	case "invite":
		return d.invite, false
	case "uninvite":
		return d.uninvite, false
	case "invitations":
		return d.invitations, false
	case "setmode":
		return d.setMode, false
	case "rep":
		return d.rep, false
	case "noob":
		return d.noob, false
	case "buyclaim":
		return d.buyClaim, false
	case "forcemode":
		return d.forceMode, true
	case "setrep":
		return d.setRep, true
	case "addrep":
		return d.addRep, true
	case "setclaims":
		return d.setClaims, true
	case "pvparea":
		return d.pvpArea, true
	case "reload":
		return d.reloadCmd, false
	}
	return nil, false
}

var (
	errNoPermission = protocol.New(protocol.ErrNoPermission, "no_permission")
	errNotPlayer    = protocol.New(protocol.ErrBadRequest, "bad_usage")
)

func (d *Dispatcher) allowed(s Sender, node string) bool {
	return s.Console || d.svc.Permissions().Has(s.ID, node)
}

// fail turns err into a reply; args fill the error template.
func fail(err error, args ...any) Reply {
	return Reply{Lines: []Line{{Key: protocol.KeyOf(err), Args: args}}, Err: err}
}

func usage(text string) Reply {
	return fail(protocol.New(protocol.ErrBadRequest, "bad_usage"), text)
}

func (d *Dispatcher) player(name string) (model.PlayerID, Reply, bool) {
	id, ok := d.players.Lookup(name)
	if !ok {
		return model.PlayerID{}, fail(protocol.New(protocol.ErrNotFound, "player_not_found"), name), false
	}
	return id, Reply{}, true
}

func (d *Dispatcher) name(id model.PlayerID) string {
	if n := d.players.Name(id); n != "" {
		return n
	}
	return id.String()
}

func (d *Dispatcher) claim(_ context.Context, s Sender, _ []string) Reply {
	if s.Console {
		return fail(errNotPlayer, "/claim")
	}
	c, err := d.svc.Claim(s.ID, s.Location)
	if err != nil {
		return fail(err, s.Location.Chunk().String())
	}
	return say("claim_success", c.Key.String(), d.svc.ClaimCount(s.ID), d.svc.LimitOf(s.ID).String())
}

func (d *Dispatcher) unclaim(_ context.Context, s Sender, _ []string) Reply {
	if s.Console {
		return fail(errNotPlayer, "/unclaim")
	}
	c, err := d.svc.Unclaim(s.ID, s.Location)
	if err != nil {
		return fail(err, s.Location.Chunk().String())
	}
	return say("unclaim_success", c.Key.String())
}

func (d *Dispatcher) claims(_ context.Context, s Sender, args []string) Reply {
	if s.Console && len(args) == 0 {
		return usage("/claims <player>")
	}
	id := s.ID
	if len(args) > 0 {
		var r Reply
		var ok bool
		if id, r, ok = d.player(args[0]); !ok {
			return r
		}
	}
	cs := d.svc.ClaimsOf(id)
	if len(cs) == 0 {
		return say("claims_none")
	}
	r := say("claims_header", len(cs), d.svc.LimitOf(id).String())
	for _, c := range cs {
		r.add("claims_entry", c.Key.String())
	}
	return r
}

func (d *Dispatcher) claimInfo(_ context.Context, s Sender, _ []string) Reply {
	key := s.Location.Chunk()
	info := d.svc.ClaimInfo(key)
	var r Reply
	if info.Claimed {
		r.add("claiminfo_owned", key.String(), d.name(info.Claim.Owner), d.rel(info.Claim.ClaimedAt))
	} else {
		r.add("claiminfo_unclaimed", key.String())
	}
	if info.PvpArea != "" {
		r.add("claiminfo_pvp", key.String(), info.PvpArea)
	}
	if info.Region != "" {
		r.add("claiminfo_region", key.String())
	}
	return r
}

func (d *Dispatcher) show(_ context.Context, s Sender, _ []string) Reply {
	cs := d.svc.Show(s.Location)
	r := say("show_header", d.svc.Config().ShowRadius)
	for _, c := range cs {
		r.add("show_entry", c.Key.String(), d.name(c.Owner))
	}
	return r
}

// invite <player> [build|containers|full] [owner]
func (d *Dispatcher) invite(_ context.Context, s Sender, args []string) Reply {
	if s.Console {
		return fail(errNotPlayer, "/invite")
	}
	if len(args) < 1 || len(args) > 3 {
		return usage("/invite <player> [build|containers|full] [owner]")
	}
	invitee, r, ok := d.player(args[0])
	if !ok {
		return r
	}
	level := model.LevelBuild
	if len(args) > 1 {
		if level, ok = parseLevel(args[1]); !ok {
			return usage("/invite <player> [build|containers|full] [owner]")
		}
	}
	owner := s.ID
	if len(args) > 2 {
		if owner, r, ok = d.player(args[2]); !ok {
			return r
		}
	}
	if _, err := d.svc.Invite(s.ID, owner, invitee, level); err != nil {
		return fail(err, inviteArg(err, d.name(invitee), d.name(owner)))
	}
	return say("invite_success", d.name(invitee), level.String())
}

// uninvite <player> [owner]
func (d *Dispatcher) uninvite(_ context.Context, s Sender, args []string) Reply {
	if s.Console {
		return fail(errNotPlayer, "/uninvite")
	}
	if len(args) < 1 || len(args) > 2 {
		return usage("/uninvite <player> [owner]")
	}
	invitee, r, ok := d.player(args[0])
	if !ok {
		return r
	}
	owner := s.ID
	if len(args) > 1 {
		if owner, r, ok = d.player(args[1]); !ok {
			return r
		}
	}
	if _, err := d.svc.Uninvite(s.ID, owner, invitee); err != nil {
		return fail(err, inviteArg(err, d.name(invitee), d.name(owner)))
	}
	return say("uninvite_success", d.name(invitee))
}

// invitations | invitations cycle <player> | invitations set <player> <b> <c> <m>
func (d *Dispatcher) invitations(_ context.Context, s Sender, args []string) Reply {
	if s.Console {
		return fail(errNotPlayer, "/invitations")
	}
	if len(args) >= 2 && strings.EqualFold(args[0], "cycle") {
		invitee, r, ok := d.player(args[1])
		if !ok {
			return r
		}
		inv, err := d.svc.CycleInvitation(s.ID, s.ID, invitee)
		if err != nil {
			return fail(err, inviteArg(err, d.name(invitee), d.name(s.ID)))
		}
		return say("invitation_updated", d.name(invitee), inv.Level().String())
	}
	if len(args) == 5 && strings.EqualFold(args[0], "set") {
		invitee, r, ok := d.player(args[1])
		if !ok {
			return r
		}
		var flags [3]bool
		for i, a := range args[2:] {
			b, err := strconv.ParseBool(a)
			if err != nil {
				return fail(protocol.New(protocol.ErrBadRequest, "bad_number"), a)
			}
			flags[i] = b
		}
		inv, err := d.svc.UpdateInvitation(s.ID, s.ID, invitee, flags[0], flags[1], flags[2])
		if err != nil {
			return fail(err, inviteArg(err, d.name(invitee), d.name(s.ID)))
		}
		return say("invitation_updated", d.name(invitee), inv.Level().String())
	}
	by, to := d.svc.Invitations(s.ID)
	if len(by)+len(to) == 0 {
		return say("invitations_none")
	}
	r := say("invitations_header")
	for _, inv := range by {
		r.add("invitations_entry", d.name(inv.Invitee), inv.Level().String())
	}
	for _, inv := range to {
		r.add("invitations_entry", d.name(inv.Owner), inv.Level().String())
	}
	return r
}

// inviteArg picks the name the error template talks about.
func inviteArg(err error, invitee, owner string) string {
	if errors.Is(err, service.ErrNoManage) {
		return owner
	}
	return invitee
}

// setmode <peaceful|normal|confirm|cancel>
func (d *Dispatcher) setMode(ctx context.Context, s Sender, args []string) Reply {
	if s.Console {
		return fail(errNotPlayer, "/setmode")
	}
	if len(args) != 1 {
		return usage("/setmode <peaceful|normal|confirm|cancel>")
	}
	switch strings.ToLower(args[0]) {
	case "confirm":
		ch, err := d.svc.ConfirmModeChange(ctx, s.ID)
		if err != nil {
			return d.modeErr(s.ID, err)
		}
		return modeReply(ch)
	case "cancel":
		if !d.svc.CancelModeChange(s.ID) {
			return fail(service.ErrNoPending)
		}
		return say("mode_status", d.name(s.ID), d.svc.ModeOf(s.ID).String())
	}
	mode, err := model.ParseMode(args[0])
	if err != nil {
		return usage("/setmode <peaceful|normal|confirm|cancel>")
	}
	req, immediate, err := d.svc.RequestModeChange(ctx, s.ID, mode)
	if err != nil {
		return d.modeErr(s.ID, err, mode.String())
	}
	if immediate != nil {
		return modeReply(*immediate)
	}
	secs := int(req.ExpiresAt.Sub(d.now()).Round(time.Second) / time.Second)
	return say("mode_confirm", secs, mode.String())
}

func modeReply(ch service.ModeChange) Reply {
	if len(ch.ClaimsReleased) > 0 {
		return say("mode_changed_claims_lost", ch.To.String(), len(ch.ClaimsReleased))
	}
	return say("mode_set", ch.To.String())
}

func (d *Dispatcher) modeErr(id model.PlayerID, err error, args ...any) Reply {
	if errors.Is(err, modes.ErrOnCooldown) {
		return fail(err, d.rel(d.now().Add(d.svc.CooldownRemaining(id))))
	}
	return fail(err, args...)
}

// forcemode <player> <mode>
func (d *Dispatcher) forceMode(ctx context.Context, s Sender, args []string) Reply {
	if len(args) != 2 {
		return usage("/forcemode <player> <peaceful|normal>")
	}
	target, r, ok := d.player(args[0])
	if !ok {
		return r
	}
	mode, err := model.ParseMode(args[1])
	if err != nil {
		return usage("/forcemode <player> <peaceful|normal>")
	}
	if _, err := d.svc.ForceMode(ctx, s.ID, target, mode); err != nil {
		return fail(err, mode.String())
	}
	return say("mode_forced", d.name(target), mode.String())
}

// setrep <player> <value>
func (d *Dispatcher) setRep(ctx context.Context, s Sender, args []string) Reply {
	if len(args) != 2 {
		return usage("/setrep <player> <value>")
	}
	target, r, ok := d.player(args[0])
	if !ok {
		return r
	}
	v, err := strconv.Atoi(args[1])
	if err != nil {
		return fail(protocol.New(protocol.ErrBadRequest, "bad_number"), args[1])
	}
	rep, err := d.svc.SetReputation(ctx, s.ID, target, v)
	if err != nil {
		return fail(err)
	}
	return say("rep_set", d.name(target), rep.Value)
}

// addrep <player> <delta>
func (d *Dispatcher) addRep(ctx context.Context, s Sender, args []string) Reply {
	if len(args) != 2 {
		return usage("/addrep <player> <delta>")
	}
	target, r, ok := d.player(args[0])
	if !ok {
		return r
	}
	delta, err := strconv.Atoi(args[1])
	if err != nil {
		return fail(protocol.New(protocol.ErrBadRequest, "bad_number"), args[1])
	}
	actual, rep, err := d.svc.AddReputation(ctx, s.ID, target, delta)
	if err != nil {
		return fail(err)
	}
	return say("rep_added", d.name(target), strconv.Itoa(actual), rep.Value)
}

// rep [player]
func (d *Dispatcher) rep(ctx context.Context, s Sender, args []string) Reply {
	if s.Console && len(args) == 0 {
		return usage("/rep <player>")
	}
	id := s.ID
	if len(args) > 0 {
		var r Reply
		var ok bool
		if id, r, ok = d.player(args[0]); !ok {
			return r
		}
	}
	rep, err := d.svc.Reputation(ctx, id)
	if err != nil {
		return fail(err)
	}
	return say("rep_value", d.name(id), rep.Value)
}

// noob [player] | noob grant <player> | noob clear <player>
func (d *Dispatcher) noob(_ context.Context, s Sender, args []string) Reply {
	if len(args) == 2 {
		sub := strings.ToLower(args[0])
		if sub != "grant" && sub != "clear" {
			return usage("/noob [player] | /noob grant|clear <player>")
		}
		if !d.allowed(s, resolver.NodeAdmin) {
			return fail(errNoPermission)
		}
		target, r, ok := d.player(args[1])
		if !ok {
			return r
		}
		if sub == "clear" {
			d.svc.ClearNoob(s.ID, target)
			return say("noob_inactive", d.name(target))
		}
		st := d.svc.GrantNoob(s.ID, target)
		return say("noob_granted", d.name(target), d.rel(st.GrantedUntil))
	}
	if s.Console && len(args) == 0 {
		return usage("/noob <player>")
	}
	id := s.ID
	if len(args) == 1 {
		var r Reply
		var ok bool
		if id, r, ok = d.player(args[0]); !ok {
			return r
		}
	}
	left := d.svc.NoobRemaining(id)
	if left <= 0 {
		return say("noob_inactive", d.name(id))
	}
	return say("noob_active", d.name(id), d.rel(d.now().Add(left)))
}

// buyclaim [n]
func (d *Dispatcher) buyClaim(ctx context.Context, s Sender, args []string) Reply {
	if s.Console {
		return fail(errNotPlayer, "/buyclaim")
	}
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return fail(protocol.New(protocol.ErrBadRequest, "bad_number"), args[0])
		}
		n = v
	}
	_, cost, err := d.svc.BuyClaims(ctx, s.ID, n)
	switch {
	case errors.Is(err, economy.ErrFunds):
		return fail(err, humanize.Commaf(d.svc.Config().ClaimPrice*float64(n)), n)
	case errors.Is(err, economy.ErrPurchaseCap):
		return fail(err, d.svc.Config().MaxPurchasedClaims)
	case err != nil:
		return fail(err)
	}
	return say("buy_success", n, humanize.Commaf(cost))
}

// setclaims <player> <n>
func (d *Dispatcher) setClaims(_ context.Context, s Sender, args []string) Reply {
	if len(args) != 2 {
		return usage("/setclaims <player> <count>")
	}
	target, r, ok := d.player(args[0])
	if !ok {
		return r
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fail(protocol.New(protocol.ErrBadRequest, "bad_number"), args[1])
	}
	if err := d.svc.SetPurchased(s.ID, target, n); err != nil {
		return fail(err)
	}
	return say("claims_set", d.name(target), n)
}

// pvparea create <name> <x1> <y1> <z1> <x2> <y2> <z2> | delete <name> | list
func (d *Dispatcher) pvpArea(_ context.Context, s Sender, args []string) Reply {
	const use = "/pvparea create <name> <x1> <y1> <z1> <x2> <y2> <z2> | delete <name> | list"
	if len(args) == 0 {
		return usage(use)
	}
	switch strings.ToLower(args[0]) {
	case "list":
		areas := d.svc.PvpAreas()
		if len(areas) == 0 {
			return say("pvparea_none")
		}
		var r Reply
		for _, a := range areas {
			r.add("pvparea_entry", a.Name, a.World,
				formatXYZ(a.MinX, a.MinY, a.MinZ), formatXYZ(a.MaxX, a.MaxY, a.MaxZ))
		}
		return r
	case "delete":
		if len(args) != 2 {
			return usage(use)
		}
		if err := d.svc.DeletePvpArea(s.ID, args[1]); err != nil {
			return fail(err, args[1])
		}
		return say("pvparea_deleted", args[1])
	case "create":
		if len(args) != 8 {
			return usage(use)
		}
		var n [6]int
		for i, a := range args[2:] {
			v, err := strconv.Atoi(a)
			if err != nil {
				return fail(protocol.New(protocol.ErrBadRequest, "bad_number"), a)
			}
			n[i] = v
		}
		world := s.Location.World
		a := model.Location{World: world, X: n[0], Y: n[1], Z: n[2]}
		b := model.Location{World: world, X: n[3], Y: n[4], Z: n[5]}
		if _, err := d.svc.CreatePvpArea(s.ID, args[1], a, b); err != nil {
			return fail(err, args[1])
		}
		return say("pvparea_created", args[1])
	}
	return usage(use)
}

func (d *Dispatcher) reloadCmd(_ context.Context, s Sender, _ []string) Reply {
	if !d.allowed(s, resolver.NodeReload) && !d.allowed(s, resolver.NodeAdmin) {
		return fail(errNoPermission)
	}
	if d.reload == nil {
		return say("reload_done")
	}
	cfg, err := d.reload()
	if err != nil {
		return fail(protocol.New(protocol.ErrBadRequest, "bad_usage"), err.Error())
	}
	d.svc.Reload(cfg)
	return say("reload_done")
}

// rel renders t relative to the dispatcher clock ("3 hours ago", "5 minutes from now").
func (d *Dispatcher) rel(t time.Time) string {
	return humanize.RelTime(t, d.now(), "ago", "from now")
}

func parseLevel(s string) (model.Level, bool) {
	switch strings.ToLower(s) {
	case "build":
		return model.LevelBuild, true
	case "containers", "build+containers":
		return model.LevelContainers, true
	case "full", "manage":
		return model.LevelFull, true
	}
	return model.LevelNone, false
}

func formatXYZ(x, y, z int) string {
	return strconv.Itoa(x) + "," + strconv.Itoa(y) + "," + strconv.Itoa(z)
}
