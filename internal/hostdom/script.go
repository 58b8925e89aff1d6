package hostdom

import (
	"encoding/json"
	"fmt"
)

// pageScript builds the JavaScript installed into the Gmail tab. The script
// keeps a registry mapping our NodeIDs to live elements (IDs are never
// reused), watches the document with a MutationObserver, captures the
// cancel-send click together with the scheduled-time text in the same
// synchronous turn, and exposes the small API the Go side evaluates.
func pageScript(sig Signatures) string {
	cfg, _ := json.Marshal(map[string]string{
		"cancelText":    sig.CancelText,
		"scheduledTime": sig.ScheduledTime,
		"menu":          sig.Menu,
		"menuItem":      sig.MenuItem,
		"templateText":  sig.TemplateText,
		"dateInput":     sig.DateInput,
		"timeInput":     sig.TimeInput,
	})
	return fmt.Sprintf(pageScriptTemplate, cfg, bindingName)
}

const pageScriptTemplate = `
(function() {
  if (window.__resched) { return; }
  var cfg = %s;
  var emitName = %q;
  function emit(kind, node, marker, text) {
    try {
      window[emitName](JSON.stringify({kind: kind, node: node || 0, marker: marker || '', text: text || ''}));
    } catch (e) {}
  }

  var nextId = 1;
  var byId = new Map();
  var idOf = new WeakMap();
  function register(el) {
    if (!el) { return 0; }
    var id = idOf.get(el);
    if (!id) { id = nextId++; idOf.set(el, id); byId.set(id, el); }
    return id;
  }
  function get(id) {
    var el = byId.get(id);
    return (el && document.contains(el)) ? el : null;
  }

  function textMatches(el, text) {
    return (el.textContent || '').trim().indexOf(text) !== -1;
  }

  var api = {
    alive: function(id) { return !!get(id); },
    click: function(id) {
      var el = get(id);
      if (!el) { return false; }
      el.click();
      return true;
    },
    writeInput: function(id, value) {
      var el = get(id);
      if (!el || el.tagName !== 'INPUT') { return false; }
      el.focus();
      el.value = value;
      el.dispatchEvent(new Event('input', {bubbles: true}));
      el.dispatchEvent(new Event('change', {bubbles: true}));
      el.dispatchEvent(new Event('blur', {bubbles: true}));
      return true;
    },
    insertOption: function(spec) {
      var menu = get(spec.menu), tpl = get(spec.template);
      if (!menu || !tpl) { return {option: 0, refresh: 0}; }
      var opt = tpl.cloneNode(true);
      opt.classList.add(spec.marker);
      opt.setAttribute('data-resched-marker', spec.marker);
      opt.textContent = '';
      var title = document.createElement('span');
      title.className = 'resched-title';
      title.textContent = spec.title + ' ';
      opt.appendChild(title);
      var display = document.createElement('span');
      display.className = 'resched-display';
      display.textContent = spec.display;
      opt.appendChild(display);
      var refreshId = 0;
      if (spec.refresh) {
        var refresh = document.createElement('span');
        refresh.className = 'resched-refresh';
        refresh.textContent = ' ↻';
        opt.appendChild(refresh);
        refreshId = register(refresh);
      }
      var anchor = spec.after ? get(spec.after) : null;
      if (anchor && anchor.parentNode === menu) {
        menu.insertBefore(opt, anchor.nextSibling);
      } else {
        menu.insertBefore(opt, menu.firstChild);
      }
      return {option: register(opt), refresh: refreshId};
    },
    setDisplay: function(id, text) {
      var el = get(id);
      if (!el) { return false; }
      var display = el.querySelector('.resched-display');
      if (!display) { return false; }
      display.textContent = text;
      return true;
    },
    find: function(kind) {
      var el = null;
      switch (kind) {
      case 'scheduledTime':
        el = document.querySelector(cfg.scheduledTime);
        break;
      case 'menu':
        var menus = document.querySelectorAll(cfg.menu);
        for (var i = 0; i < menus.length; i++) {
          if (findScoped(menus[i], cfg.menuItem, cfg.templateText)) { el = menus[i]; break; }
        }
        break;
      case 'dateInput':
        el = document.querySelector(cfg.dateInput);
        break;
      case 'timeInput':
        el = document.querySelector(cfg.timeInput);
        break;
      }
      return register(el);
    },
    findInMenu: function(menuId, marker) {
      var menu = get(menuId);
      if (!menu) { return 0; }
      if (marker) {
        return register(menu.querySelector('.' + marker));
      }
      return register(findScoped(menu, cfg.menuItem, cfg.templateText));
    },
    tagCandidates: function(selector) {
      var nodes = document.querySelectorAll(selector);
      for (var i = 0; i < nodes.length; i++) {
        nodes[i].setAttribute('data-resched-cand', String(register(nodes[i])));
      }
      return document.body ? document.body.outerHTML : '';
    }
  };

  function findScoped(root, selector, text) {
    var nodes = root.querySelectorAll(selector);
    for (var i = 0; i < nodes.length; i++) {
      if (!nodes[i].hasAttribute('data-resched-marker') && textMatches(nodes[i], text)) {
        return nodes[i];
      }
    }
    return null;
  }

  new MutationObserver(function() { emit('mutation'); }).observe(
    document.documentElement, {childList: true, subtree: true});

  window.addEventListener('hashchange', function() {
    emit('navigation', 0, '', location.href);
  });

  // Capture phase: the scheduled-time text must be read before Gmail's own
  // cancel handling re-renders it away
  document.addEventListener('click', function(e) {
    var target = e.target;
    if (!(target instanceof Element)) { return; }

    var refresh = target.closest('.resched-refresh');
    if (refresh) {
      e.stopPropagation();
      e.preventDefault();
      emit('refresh', register(refresh));
      return;
    }
    var opt = target.closest('[data-resched-marker]');
    if (opt) {
      emit('option', register(opt), opt.getAttribute('data-resched-marker'));
      return;
    }
    var control = target.closest('span[role=link], button');
    if (control && textMatches(control, cfg.cancelText)) {
      var display = document.querySelector(cfg.scheduledTime);
      emit('cancel', 0, '', display ? (display.textContent || '').trim() : '');
    }
  }, true);

  window.__resched = api;
})();
`
